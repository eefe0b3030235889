package counter

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against the Datastore emulator only.
func TestDatastoreStore(t *testing.T) {
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("DATASTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	pjID := os.Getenv("DATASTORE_PROJECT_ID")
	if pjID == "" {
		pjID = "counter-test"
	}
	store, err := NewDatastoreStore(ctx, DatastoreConfig{
		ProjectID: pjID,
		Namespace: "test-" + uuid.New().String(),
	})
	require.NoError(t, err)
	defer store.Close()

	storeContract(t, store, DocumentID)
}

func TestLoadFieldMismatch(t *testing.T) {
	typ := reflect.TypeOf(counterEntity{})
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "nil", err: nil},
		{name: "unknown property", err: &datastore.ErrFieldMismatch{StructType: typ, FieldName: "updatedAt", Reason: "no such struct field"}},
		{name: "wrong type", err: &datastore.ErrFieldMismatch{StructType: typ, FieldName: "count", Reason: "type mismatch: string versus int64"}, wantErr: true},
		{name: "other", err: errors.New("rpc error"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := load(tt.err)
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
