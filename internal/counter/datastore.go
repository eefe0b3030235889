package counter

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/option"
)

var _ Store = (*DatastoreStore)(nil)

const DefaultKind = "Counter"

// counterEntity is the persisted shape: {"id": "1", "count": N} plus a version
// bumped on every write.
type counterEntity struct {
	ID      string `datastore:"id,noindex"`
	Count   int64  `datastore:"count,noindex"`
	Version int64  `datastore:"version,noindex"`
}

type DatastoreStore struct {
	client    *datastore.Client
	kind      string
	namespace string
}

type DatastoreConfig struct {
	ProjectID string
	Kind      string
	Namespace string
}

func NewDatastoreStore(ctx context.Context, cfg DatastoreConfig, opts ...option.ClientOption) (*DatastoreStore, error) {
	cl, err := datastore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("datastore.NewClient: %w", err)
	}
	kind := cfg.Kind
	if kind == "" {
		kind = DefaultKind
	}
	return &DatastoreStore{client: cl, kind: kind, namespace: cfg.Namespace}, nil
}

func (d *DatastoreStore) key(id string) *datastore.Key {
	key := datastore.NameKey(d.kind, id, nil)
	key.Namespace = d.namespace
	return key
}

// load tolerates properties that the entity struct does not know about. Any
// other mismatch, such as a count stored with another type, is an error.
func load(err error) error {
	var fm *datastore.ErrFieldMismatch
	if errors.As(err, &fm) && fm.Reason == "no such struct field" {
		return nil
	}
	return err
}

func (d *DatastoreStore) Get(ctx context.Context, id string) (Lookup, error) {
	var e counterEntity
	err := load(d.client.Get(ctx, d.key(id), &e))
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return Lookup{}, nil
	}
	if err != nil {
		return Lookup{}, fmt.Errorf("Get: %w", err)
	}
	return Lookup{Found: true, Doc: Document{ID: id, Count: e.Count}, Version: e.Version}, nil
}

func (d *DatastoreStore) Create(ctx context.Context, doc Document) error {
	key := d.key(doc.ID)
	return d.transact(ctx, func(tx *datastore.Transaction) error {
		var cur counterEntity
		err := load(tx.Get(key, &cur))
		if err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		_, err = tx.Put(key, &counterEntity{ID: doc.ID, Count: doc.Count, Version: 1})
		return err
	}, ErrAlreadyExists)
}

func (d *DatastoreStore) Upsert(ctx context.Context, doc Document) error {
	key := d.key(doc.ID)
	return d.transact(ctx, func(tx *datastore.Transaction) error {
		var cur counterEntity
		err := load(tx.Get(key, &cur))
		if err != nil && !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		_, err = tx.Put(key, &counterEntity{ID: doc.ID, Count: doc.Count, Version: cur.Version + 1})
		return err
	}, ErrConflict)
}

func (d *DatastoreStore) Swap(ctx context.Context, prev Lookup, next Document) error {
	key := d.key(next.ID)
	return d.transact(ctx, func(tx *datastore.Transaction) error {
		var cur counterEntity
		err := load(tx.Get(key, &cur))
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return ErrConflict
		} else if err != nil {
			return err
		}
		if cur.Version != prev.Version {
			return ErrConflict
		}
		_, err = tx.Put(key, &counterEntity{ID: next.ID, Count: next.Count, Version: cur.Version + 1})
		return err
	}, ErrConflict)
}

// transact runs f in a single-attempt transaction. Retrying is the caller's
// decision, so a commit lost to a concurrent transaction surfaces as onRace.
func (d *DatastoreStore) transact(ctx context.Context, f func(tx *datastore.Transaction) error, onRace error) error {
	_, err := d.client.RunInTransaction(ctx, f, datastore.MaxAttempts(1))
	if errors.Is(err, datastore.ErrConcurrentTransaction) {
		return onRace
	}
	if err != nil && !errors.Is(err, ErrAlreadyExists) && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("RunInTransaction: %w", err)
	}
	return err
}

func (d *DatastoreStore) Check(ctx context.Context) error {
	_, err := d.Get(ctx, DocumentID)
	return err
}

func (d *DatastoreStore) Close() error {
	return d.client.Close()
}
