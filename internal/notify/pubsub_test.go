package notify

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tckz/go-visitor-counter/internal/counter"
	"github.com/tckz/go-visitor-counter/internal/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPubSubNotifier(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	cl, err := pubsub.NewClient(ctx, "counter-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer cl.Close()

	_, err = cl.CreateTopic(ctx, "visits")
	require.NoError(t, err)

	n := NewPubSubNotifier(cl, "visits", log.Nop())
	n.now = func() time.Time { return time.Unix(1700000000, 0) }

	n.Notify(ctx, counter.Result{Count: 1, Created: true})
	n.Notify(ctx, counter.Result{Count: 2})
	n.Close()

	msgs := srv.Messages()
	require.Len(t, msgs, 2)

	var got []Event
	for _, m := range msgs {
		e, err := DecodeEvent(m.Data)
		require.NoError(t, err)
		got = append(got, e)
	}
	assert.ElementsMatch(t, []Event{
		{Count: 1, Created: true, Timestamp: 1700000000},
		{Count: 2, Timestamp: 1700000000},
	}, got)
	assert.Contains(t, []string{"1", "2"}, msgs[0].Attributes["count"])
}

func TestDecodeEvent(t *testing.T) {
	e, err := DecodeEvent([]byte(`{"count":42,"created":false,"timestamp":1}`))
	require.NoError(t, err)
	assert.Equal(t, Event{Count: 42, Timestamp: 1}, e)

	_, err = DecodeEvent([]byte(`{"count":0}`))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}
