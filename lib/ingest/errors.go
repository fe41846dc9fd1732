package ingest

import "errors"

var (
	// ErrFetchFailure aborts a whole cycle; the next scheduled cycle starts over.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrMalformedRecord skips a single provider record.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrAlreadyExists is the idempotence signal from the store, not a fault.
	ErrAlreadyExists = errors.New("disruption already exists")
	ErrStoreFailure  = errors.New("store failure")
	// ErrDispatchFailure is reported per token and never rolls back storage.
	ErrDispatchFailure = errors.New("dispatch failure")
)
