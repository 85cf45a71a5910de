package config

import (
	"testing"
	"time"
)

func TestWriteTimeout(t *testing.T) {
	testCases := []struct {
		name         string
		fetchTimeout time.Duration
		want         time.Duration
	}{
		{"Default fetch timeout", DefaultFetchTimeout, 25 * time.Second},
		{"Custom fetch timeout", 3 * time.Second, 11 * time.Second},
		{"Unset fetch timeout", 0, 25 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig(4000, "testing", nil)
			cfg.FetchTimeout = tc.fetchTimeout

			got := cfg.WriteTimeout()
			if got != tc.want {
				t.Errorf("WriteTimeout() = %v, want %v", got, tc.want)
			}
			if got <= 2*tc.fetchTimeout {
				t.Errorf("WriteTimeout() = %v does not cover two fetches of %v", got, tc.fetchTimeout)
			}
		})
	}
}
