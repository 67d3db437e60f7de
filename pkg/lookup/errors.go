package lookup

import (
	"errors"
	"fmt"
)

// ErrUnknownLookup is returned when a lookupRef names no definition.
var ErrUnknownLookup = errors.New("lookup: unknown lookup")

// ErrNoFetcher is returned when a service resolves without a fetcher.
var ErrNoFetcher = errors.New("lookup: fetcher is not configured")

// LookupError reports a failed resolution. The cache is never updated for a
// failed fetch.
type LookupError struct {
	Lookup string
	Key    string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup: resolve %q: %v", e.Lookup, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
