package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

// listeners is the subscriber registry shared by the store implementations.
//
// Delivery holds the read lock, so Unsubscribe waits for any in-flight
// delivery and no listener is invoked after Unsubscribe returns. Listeners
// must not subscribe or unsubscribe from inside a notification.
type listeners struct {
	mu    sync.RWMutex
	order []weather.Subscription
	byID  map[weather.Subscription]weather.Listener
}

func newListeners() *listeners {
	return &listeners{byID: make(map[weather.Subscription]weather.Listener)}
}

func (l *listeners) add(fn weather.Listener) weather.Subscription {
	id := weather.Subscription(uuid.NewString())

	l.mu.Lock()
	defer l.mu.Unlock()

	l.order = append(l.order, id)
	l.byID[id] = fn
	return id
}

func (l *listeners) remove(id weather.Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byID[id]; !ok {
		return
	}
	delete(l.byID, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// notify invokes listeners in subscription order.
func (l *listeners) notify(s weather.Snapshot) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, id := range l.order {
		l.byID[id](s)
	}
}
