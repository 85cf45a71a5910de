package metrics

import "testing"

func TestCounterValue(t *testing.T) {
	before, err := CounterValue(FeedFetches, "ACE", OutcomeSuccess)
	if err != nil {
		t.Fatalf("CounterValue failed: %v", err)
	}

	FeedFetches.WithLabelValues("ACE", OutcomeSuccess).Inc()

	after, err := CounterValue(FeedFetches, "ACE", OutcomeSuccess)
	if err != nil {
		t.Fatalf("CounterValue failed: %v", err)
	}
	if after-before != 1 {
		t.Errorf("Expected counter to grow by 1, grew by %v", after-before)
	}
}

func TestGaugeValue(t *testing.T) {
	ActiveAlerts.WithLabelValues("major").Set(3)

	got, err := GaugeValue(ActiveAlerts, "major")
	if err != nil {
		t.Fatalf("GaugeValue failed: %v", err)
	}
	if got != 3 {
		t.Errorf("GaugeValue = %v, want 3", got)
	}
}
