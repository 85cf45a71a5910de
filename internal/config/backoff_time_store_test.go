package config

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestDoWithBackoff(t *testing.T) {
	tests := []struct {
		name          string
		maxRetries    int
		ctxTimeout    time.Duration
		cancelled     bool
		handler       func(req *http.Request) (*http.Response, error)
		expectErr     string
		expectCalls   int
		expectStatus  int
		expectSuccess bool
	}{
		{
			name:       "success on first try",
			maxRetries: 3,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
			},
			expectCalls:   1,
			expectStatus:  200,
			expectSuccess: true,
		},
		{
			name:       "client errors are not retried",
			maxRetries: 3,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 404, Body: http.NoBody}, nil
			},
			expectCalls:   1,
			expectStatus:  404,
			expectSuccess: true,
		},
		{
			name:       "server errors return the last response",
			maxRetries: 1,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 503, Body: http.NoBody}, nil
			},
			expectCalls:   2,
			expectStatus:  503,
			expectSuccess: true,
		},
		{
			name:       "max retries exceeded",
			maxRetries: 2,
			handler: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("mock error")
			},
			expectErr:   "max retries exceeded",
			expectCalls: 3,
		},
		{
			name:       "context deadline while waiting to retry",
			maxRetries: 10,
			ctxTimeout: 50 * time.Millisecond,
			handler: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("fail")
			},
			expectErr:   "context deadline exceeded",
			expectCalls: -1,
		},
		{
			name:       "context cancelled before the first attempt",
			maxRetries: 3,
			cancelled:  true,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
			},
			expectErr:   "context canceled",
			expectCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRoundTripper{handler: tt.handler}
			client := &http.Client{Transport: mock}
			req, _ := http.NewRequest("GET", "http://example.com", nil)

			ctx := context.Background()
			if tt.ctxTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.ctxTimeout)
				defer cancel()
			}
			if tt.cancelled {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			resp, err := DoWithBackoff(ctx, client, req, tt.maxRetries)

			if tt.expectErr == "" && err != nil {
				t.Fatalf("expected success, got error: %v", err)
			}
			if tt.expectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tt.expectErr, err)
				}
			}
			if tt.expectSuccess {
				if resp == nil {
					t.Fatalf("expected response, got nil")
				}
				if resp.StatusCode != tt.expectStatus {
					t.Errorf("expected status %d, got %d", tt.expectStatus, resp.StatusCode)
				}
			}

			if tt.expectCalls >= 0 && mock.calls != tt.expectCalls {
				t.Errorf("expected %d calls, got %d", tt.expectCalls, mock.calls)
			}
		})
	}
}

func TestBackoffStore(t *testing.T) {
	store := NewBackoffStore()
	now := time.Now()

	if _, ok := store.NextRetryAt("ACE"); ok {
		t.Fatal("expected no backoff for a fresh key")
	}
	if store.InBackoff("ACE", now) {
		t.Fatal("fresh key must not be in backoff")
	}

	store.UpdateBackoff("ACE")
	first, ok := store.NextRetryAt("ACE")
	if !ok {
		t.Fatal("expected a backoff entry after UpdateBackoff")
	}
	if !first.After(now) {
		t.Errorf("expected next retry after now, got %v", first)
	}
	if !store.InBackoff("ACE", now) {
		t.Error("expected ACE to be in backoff")
	}
	if store.InBackoff("L", now) {
		t.Error("backoff for ACE leaked to L")
	}

	store.UpdateBackoff("ACE")
	second, _ := store.NextRetryAt("ACE")
	if second.Before(first) {
		t.Errorf("expected backoff to grow, first=%v second=%v", first, second)
	}

	store.ResetBackoff("ACE")
	if _, ok := store.NextRetryAt("ACE"); ok {
		t.Error("expected backoff entry to be removed")
	}

	store.UpdateBackoff("G")
	store.Reset()
	if store.InBackoff("G", now) {
		t.Error("expected Reset to clear every key")
	}
}

func TestCalculateNewBackoffDelay(t *testing.T) {
	if got := calculateNewBackoffDelay(BASE_BACKOFF); got != 2*BASE_BACKOFF {
		t.Errorf("expected %v, got %v", 2*BASE_BACKOFF, got)
	}
	if got := calculateNewBackoffDelay(MAX_BACKOFF); got != MAX_BACKOFF {
		t.Errorf("expected delay capped at %v, got %v", MAX_BACKOFF, got)
	}
}
