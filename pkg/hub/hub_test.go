package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type queueClient struct {
	ch chan Message
}

func (q *queueClient) Queue() chan Message { return q.ch }

func TestHub_BroadcastReachesClients(t *testing.T) {
	h := New("status", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := &queueClient{ch: make(chan Message, 4)}
	b := &queueClient{ch: make(chan Message, 4)}
	h.Register(ctx, a)
	h.Register(ctx, b)

	if err := h.Publish(EventState, map[string]float64{"pan": 0.2}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, c := range []*queueClient{a, b} {
		select {
		case msg := <-c.ch:
			var ev struct {
				Type string             `json:"type"`
				Data map[string]float64 `json:"data"`
			}
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ev.Type != EventState || ev.Data["pan"] != 0.2 {
				t.Errorf("unexpected event: %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}

	if h.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", h.ClientCount())
	}
}

func TestHub_UnregisterClosesQueue(t *testing.T) {
	h := New("status", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &queueClient{ch: make(chan Message, 1)}
	h.Register(ctx, c)
	h.Unregister(ctx, c)

	select {
	case _, ok := <-c.ch:
		if ok {
			t.Error("expected closed queue")
		}
	case <-time.After(time.Second):
		t.Fatal("queue was not closed")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", h.ClientCount())
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := New("status", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	slow := &queueClient{ch: make(chan Message)} // unbuffered, never read
	h.Register(ctx, slow)
	h.Broadcast(Message{Data: []byte(`{}`)})

	deadline := time.After(time.Second)
	for h.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("slow client was not dropped")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
