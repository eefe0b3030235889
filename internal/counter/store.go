package counter

import (
	"context"
	"errors"
)

// DocumentID is the fixed key of the single counter document.
const DocumentID = "1"

var (
	// ErrStoreUnavailable means the store could not be reached (connectivity,
	// auth, timeout) or was never initialized.
	ErrStoreUnavailable = errors.New("counter store unavailable")
	// ErrStoreError is any other persistence failure.
	ErrStoreError = errors.New("counter store error")

	// ErrAlreadyExists is returned by Store.Create when the document exists.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrConflict is returned by Store.Swap when the stored version moved.
	ErrConflict = errors.New("document version conflict")
)

type Document struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// Lookup is the outcome of Store.Get. Found is false when no document exists
// at the key; that is not an error.
type Lookup struct {
	Found   bool
	Doc     Document
	Version int64
}

type Store interface {
	Get(ctx context.Context, id string) (Lookup, error)
	// Create writes doc only if nothing exists at doc.ID.
	Create(ctx context.Context, doc Document) error
	// Upsert overwrites doc unconditionally.
	Upsert(ctx context.Context, doc Document) error
	// Swap writes next only if the stored version still equals prev.Version.
	Swap(ctx context.Context, prev Lookup, next Document) error
	// Check probes reachability.
	Check(ctx context.Context) error
	Close() error
}

// Incrementer is implemented by stores with an atomic increment primitive.
type Incrementer interface {
	Increment(ctx context.Context, id string) (Result, error)
}

// Result is what an increment produced.
type Result struct {
	Count   int64
	Created bool
}
