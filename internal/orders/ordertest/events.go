package ordertest

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type Emitted struct {
	Topic    string
	BuyerID  string
	Envelope orders.Envelope
}

// Recorder captures events sent to it as an EventSink and a BuyerNotifier.
type Recorder struct {
	mu       sync.Mutex
	Events   []Emitted
	Notified []Emitted
}

func (r *Recorder) Emit(_ context.Context, topic string, env orders.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Emitted{Topic: topic, Envelope: env})
	return nil
}

func (r *Recorder) NotifyBuyer(_ context.Context, buyerID string, env orders.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notified = append(r.Notified, Emitted{BuyerID: buyerID, Envelope: env})
	return nil
}

// Types returns the event types emitted on topic, in order.
func (r *Recorder) Types(topic string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.Events {
		if e.Topic == topic {
			out = append(out, e.Envelope.EventType)
		}
	}
	return out
}
