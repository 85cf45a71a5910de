package report_test

import (
	"errors"
	"os"
	"testing"

	"subwayboard.app/internal/report"
)

func TestSetupSentry(t *testing.T) {
	t.Run("Valid DSN", func(t *testing.T) {
		os.Setenv("SENTRY_DSN", "https://public@sentry.example.com/1")
		defer os.Unsetenv("SENTRY_DSN")

		if err := report.SetupSentry("testing", "test-version"); err != nil {
			t.Fatalf("SetupSentry failed: %v", err)
		}
		report.FlushSentry()
	})

	t.Run("Empty DSN disables the client", func(t *testing.T) {
		os.Unsetenv("SENTRY_DSN")
		if err := report.SetupSentry("testing", "test-version"); err != nil {
			t.Fatalf("SetupSentry with empty DSN failed: %v", err)
		}
	})

	t.Run("Malformed DSN", func(t *testing.T) {
		os.Setenv("SENTRY_DSN", "::not a dsn")
		defer os.Unsetenv("SENTRY_DSN")

		if err := report.SetupSentry("testing", "test-version"); err == nil {
			t.Fatal("Expected an error for a malformed DSN, got nil")
		}
	})
}

func TestReportHelpersTolerateNil(t *testing.T) {
	report.ReportError(nil)
	report.ReportErrorWithSentryOptions(nil, report.SentryReportOptions{})
	report.ReportFeedError(errors.New("boom"), "ACE", "http://example.com")

	if report.RecoverAndReport(nil, nil) {
		t.Error("RecoverAndReport(nil) = true, want false")
	}
	if !report.RecoverAndReport("panic value", map[string]string{"stop_key": "120N"}) {
		t.Error("RecoverAndReport(value) = false, want true")
	}
}
