package counter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ErrStoreUnavailable},
		{name: "wrapped deadline", err: fmt.Errorf("Get: %w", context.DeadlineExceeded), want: ErrStoreUnavailable},
		{name: "grpc unavailable", err: status.Error(codes.Unavailable, "down"), want: ErrStoreUnavailable},
		{name: "grpc unauthenticated", err: status.Error(codes.Unauthenticated, "bad token"), want: ErrStoreUnavailable},
		{name: "grpc internal", err: status.Error(codes.Internal, "oops"), want: ErrStoreError},
		{name: "redis closed", err: redis.ErrClosed, want: ErrStoreUnavailable},
		{name: "dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, want: ErrStoreUnavailable},
		{name: "plain", err: errors.New("bad data"), want: ErrStoreError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("Get", tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyKeepsKind(t *testing.T) {
	assert.Nil(t, classify("Get", nil))

	err := fmt.Errorf("%w: x", ErrStoreUnavailable)
	assert.Same(t, err, classify("Get", err))
}
