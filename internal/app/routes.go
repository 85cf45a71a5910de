package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"subwayboard.app/internal/middleware"
)

// Routes registers every endpoint and wraps the router with the middleware chain:
// security headers, CORS, request id, request logging, then Sentry.
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", middleware.NewCachedPromHandler(ctx, prometheus.DefaultGatherer, 10*time.Second))

	router.GET("/v1/feeds/:station", app.feedHandler)
	router.HandlerFunc(http.MethodGet, "/v1/arrivals", app.boardHandler)
	router.GET("/v1/arrivals/:station/:direction", app.arrivalsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/alerts", app.alertsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/cache/clear", app.clearCacheHandler)

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "the requested resource could not be found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var handler http.Handler = middleware.SentryMiddleware(router)
	handler = middleware.RequestLogger(app.Logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(app.ConfigService.Config.AllowedOrigins)(handler)
	return middleware.SecurityHeaders(handler)
}
