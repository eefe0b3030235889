// Package notify publishes counter increments to Pub/Sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/tckz/go-visitor-counter/internal/counter"
	"go.uber.org/zap"
)

var _ counter.Notifier = (*PubSubNotifier)(nil)

type Event struct {
	Count     int64 `json:"count"`
	Created   bool  `json:"created"`
	Timestamp int64 `json:"timestamp"`
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("json.Unmarshal: %w", err)
	}
	if e.Count < 1 {
		return Event{}, fmt.Errorf("invalid count %d", e.Count)
	}
	return e, nil
}

// PubSubNotifier publishes one message per increment. Publishing does not
// block the request; failures are only logged.
type PubSubNotifier struct {
	topic  *pubsub.Topic
	logger *zap.SugaredLogger
	now    func() time.Time
	wg     sync.WaitGroup
}

func NewPubSubNotifier(client *pubsub.Client, topicName string, logger *zap.SugaredLogger) *PubSubNotifier {
	return &PubSubNotifier{
		topic:  client.Topic(topicName),
		logger: logger,
		now:    time.Now,
	}
}

func (n *PubSubNotifier) Notify(ctx context.Context, r counter.Result) {
	b, err := json.Marshal(Event{
		Count:     r.Count,
		Created:   r.Created,
		Timestamp: n.now().UTC().Unix(),
	})
	if err != nil {
		n.logger.Errorf("json.Marshal: %v", err)
		return
	}

	ctx = context.WithoutCancel(ctx)
	res := n.topic.Publish(ctx, &pubsub.Message{
		Data: b,
		Attributes: map[string]string{
			"count": strconv.FormatInt(r.Count, 10),
		},
	})
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if _, err := res.Get(ctx); err != nil {
			n.logger.Errorf("Publish: count=%d, %v", r.Count, err)
		}
	}()
}

// Close flushes pending messages.
func (n *PubSubNotifier) Close() {
	n.wg.Wait()
	n.topic.Stop()
}
