package inbox

import (
	"errors"
	"fmt"
)

var (
	ErrClosed       = errors.New("inbox: controller closed")
	ErrMarkInFlight = errors.New("inbox: read-marking already in progress for room")
	ErrRoomNotFound = errors.New("inbox: room not found")
)

// FetchError wraps an aggregation query failure. Callers must be able
// to tell "fetch failed" apart from "zero rooms", so the aggregator
// never swallows this into an empty list.
type FetchError struct {
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("inbox: aggregation fetch failed: %v", e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// PartialReadMarkError reports a best-effort read-marking batch in which
// some per-message updates failed. It does not roll back the optimistic
// local reset; the next aggregation pass is authoritative.
type PartialReadMarkError struct {
	RoomID    int64
	Marked    int
	FailedIDs []int64
}

func (e *PartialReadMarkError) Error() string {
	return fmt.Sprintf("inbox: marked %d messages read in room %d, %d failed", e.Marked, e.RoomID, len(e.FailedIDs))
}
