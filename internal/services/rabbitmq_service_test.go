package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	mu    sync.Mutex
	acks  []uint64
	nacks []uint64
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks = append(f.nacks, tag)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func dispatchDelivery(t *testing.T, ack amqp.Acknowledger, tag uint64, campaignID uint) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(dispatchMessage{CampaignID: campaignID, QueuedAt: time.Now()})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body}
}

func TestConsumeDispatchesRunsCampaignsConcurrently(t *testing.T) {
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- dispatchDelivery(t, ack, 1, 10)
	deliveries <- dispatchDelivery(t, ack, 2, 20)
	close(deliveries)

	var mu sync.Mutex
	var started []uint
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		consumeDispatches(deliveries, func(campaignID uint) {
			mu.Lock()
			started = append(started, campaignID)
			mu.Unlock()
			<-release
		})
		close(done)
	}()

	// Both campaigns start even though neither handler has returned, and both
	// deliveries are acked before the runs finish.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(started) == 2
	}, time.Second, 10*time.Millisecond)

	ack.mu.Lock()
	assert.ElementsMatch(t, []uint64{1, 2}, ack.acks)
	assert.Empty(t, ack.nacks)
	ack.mu.Unlock()

	close(release)
	<-done

	mu.Lock()
	assert.ElementsMatch(t, []uint{10, 20}, started)
	mu.Unlock()
}

func TestConsumeDispatchesDropsMalformed(t *testing.T) {
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: []byte("not json")}
	close(deliveries)

	handled := false
	consumeDispatches(deliveries, func(campaignID uint) { handled = true })

	assert.False(t, handled)
	assert.Equal(t, []uint64{7}, ack.nacks)
	assert.Empty(t, ack.acks)
}
