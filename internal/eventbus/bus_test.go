package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/neomind-iot/neomind/pkg/models"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New()
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer sub1.Close()
	defer sub2.Close()

	b.Publish(context.Background(), models.BusEvent{Type: models.BusEventDeviceOnline, DeviceID: "d1"})

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case e := <-sub.C():
			if e.DeviceID != "d1" {
				t.Fatalf("unexpected device id %q", e.DeviceID)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSubscribeFilterRestrictsTypes(t *testing.T) {
	b := New()
	sub := b.Subscribe(models.BusEventDeviceOffline)
	defer sub.Close()

	b.Publish(context.Background(), models.BusEvent{Type: models.BusEventDeviceOnline})
	b.Publish(context.Background(), models.BusEvent{Type: models.BusEventDeviceOffline})

	select {
	case e := <-sub.C():
		if e.Type != models.BusEventDeviceOffline {
			t.Fatalf("expected filtered type, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case e := <-sub.C():
		t.Fatalf("unexpected second event delivered: %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDropsWhenSubscriberBufferFull(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < DefaultSubscriberBuffer+10; i++ {
		b.Publish(context.Background(), models.BusEvent{Type: models.BusEventDeviceMetric})
	}

	if b.DroppedCount() == 0 {
		t.Fatal("expected some drops once the subscriber buffer filled")
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	sub.Close()

	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", b.SubscriberCount())
	}

	if _, ok := <-sub.C(); ok {
		t.Fatal("expected channel to be closed")
	}
}
