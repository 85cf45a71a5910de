package gtfs

import "fmt"

// TransportError is a failed upstream fetch: network error, timeout or a non-2xx status.
type TransportError struct {
	FeedGroup  string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed %s: upstream returned status %d", e.FeedGroup, e.StatusCode)
	}
	return fmt.Sprintf("feed %s: %v", e.FeedGroup, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is a payload that could not be parsed as GTFS-realtime.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
