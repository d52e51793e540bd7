package weather

import (
	"context"
)

// Listener receives the snapshot committed by a successful Put.
type Listener func(Snapshot)

// Subscription identifies a registered Listener.
type Subscription string

// Store is the contract every persisted state store (in-memory or durable)
// must satisfy.
//
// Put replaces all fields atomically and invokes every subscribed Listener
// before it returns. Get before any Put returns Unknown().
type Store interface {
	Get(ctx context.Context) (Snapshot, error)
	Put(ctx context.Context, s Snapshot) error
	Subscribe(l Listener) Subscription
	Unsubscribe(sub Subscription)
}
