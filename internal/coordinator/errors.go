package coordinator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dreamware/seglookup/internal/cluster"
	"github.com/dreamware/seglookup/internal/metrics"
)

var (
	// ErrInvalidTimestamp rejects a missing or non-numeric query before any remote call.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrNoShard means no directory entry covers the timestamp.
	ErrNoShard = errors.New("no shard contains this timestamp")

	// ErrSegmentNotFound means a shard covers the timestamp but the search
	// exhausted its index range without a match.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrDataIntegrity means a shard returned missing or inconsistent data
	// mid-search. The search is abandoned at the first such response.
	ErrDataIntegrity = errors.New("invalid data from shard")
)

// Outcome is the category every router result falls into.
type Outcome int

const (
	Success Outcome = iota
	ClientError
	NotFound
	SystemError
)

// String returns the metrics label for o.
func (o Outcome) String() string {
	switch o {
	case Success:
		return metrics.OutcomeSuccess
	case ClientError:
		return metrics.OutcomeClientError
	case NotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeSystemError
	}
}

// Classify maps an error returned by the router to its Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInvalidTimestamp):
		return ClientError
	case errors.Is(err, ErrNoShard), errors.Is(err, ErrSegmentNotFound):
		return NotFound
	default:
		return SystemError
	}
}

// Retryable reports whether err is a transport failure a caller may retry.
// NotFound and data integrity errors are never retryable.
func Retryable(err error) bool {
	var te *cluster.TransportError
	return errors.As(err, &te) && te.Retryable()
}

// ParseTimestamp parses a query timestamp. Anything other than a base-10
// integer is ErrInvalidTimestamp.
func ParseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing", ErrInvalidTimestamp)
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	return ts, nil
}
