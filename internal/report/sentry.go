package report

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

// SetupSentry initializes the global Sentry client from SENTRY_DSN.
// An empty DSN leaves the client disabled, which keeps local runs and tests quiet.
func SetupSentry(env, release string) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv("SENTRY_DSN"),
		Environment:      env,
		Release:          release,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
	}); err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	sentry.CaptureMessage("subwayboard started")
	return nil
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
