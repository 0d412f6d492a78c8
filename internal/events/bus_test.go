package events

import (
	"log/slog"
	"testing"

	"github.com/pinmehq/toybox/internal/model"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := NewBus(slog.Default())
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(model.Toy{ID: "t1", Status: model.ToyStatusOut})

	ev := <-sub.Changes()
	if ev.Toy.ID != "t1" {
		t.Errorf("toy id = %q, want %q", ev.Toy.ID, "t1")
	}
	if ev.Toy.Status != model.ToyStatusOut {
		t.Errorf("status = %q, want %q", ev.Toy.Status, model.ToyStatusOut)
	}
}

func TestPublishOrderPreservedPerSubscriber(t *testing.T) {
	b := NewBus(slog.Default())
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(model.Toy{ID: "t1", Status: model.ToyStatusOut})
	b.Publish(model.Toy{ID: "t1", Status: model.ToyStatusIn})

	first := <-sub.Changes()
	second := <-sub.Changes()
	if first.Toy.Status != model.ToyStatusOut || second.Toy.Status != model.ToyStatusIn {
		t.Errorf("events out of order: %q then %q", first.Toy.Status, second.Toy.Status)
	}
}

func TestCloseRemovesSubscriber(t *testing.T) {
	b := NewBus(slog.Default())
	sub := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", b.SubscriberCount())
	}

	sub.Close()
	if b.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d, want 0", b.SubscriberCount())
	}

	// Channel is closed; receive should not block.
	if _, ok := <-sub.Changes(); ok {
		t.Error("expected closed channel after Close")
	}
}

func TestPublishWithFullBufferDoesNotBlock(t *testing.T) {
	b := NewBus(slog.Default())
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 200; i++ {
		b.Publish(model.Toy{ID: "t1"})
	}
	// Reaching here means Publish never blocked.
}
