package notify

import (
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/models"
)

const notificationsTopic = "notifications"

// Event is one operator notification with a correlation id so downstream
// sinks can deduplicate redeliveries.
type Event struct {
	ID      uuid.UUID
	At      time.Time
	Kind    models.NotificationKind
	Payload string
}

// Hub fans notifications out to subscribed sinks asynchronously. Publishing
// never blocks the caller, which keeps the core's fire-and-forget contract.
type Hub struct {
	bus EventBus.Bus
}

func NewHub() *Hub {
	return &Hub{
		bus: EventBus.New(),
	}
}

// Notify implements models.Notifier.
func (h *Hub) Notify(kind models.NotificationKind, payload string) {
	event := Event{
		ID:      uuid.New(),
		At:      time.Now().UTC(),
		Kind:    kind,
		Payload: payload,
	}

	log.Infof("notify: [%s] %s", kind, payload)
	h.bus.Publish(notificationsTopic, event)
}

// Subscribe registers an asynchronous sink. Deliveries to one sink stay in
// publish order (transactional), but a slow sink never stalls the publisher.
func (h *Hub) Subscribe(fn func(event Event)) error {
	return h.bus.SubscribeAsync(notificationsTopic, fn, true)
}

// Wait blocks until all in-flight deliveries finish; used on shutdown so the
// last notifications are not dropped.
func (h *Hub) Wait() {
	h.bus.WaitAsync()
}
