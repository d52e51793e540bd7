package datasync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultConnectTimeout bounds connection acquisition for one batch.
const DefaultConnectTimeout = 30 * time.Second

// ErrConnectTimeout is returned when acquisition exceeds its deadline.
var ErrConnectTimeout = errors.New("connect timed out")

// Session is a live connection to the remote channel, held while a batch is
// processed and released with Close.
type Session interface {
	Close() error
}

// Connector acquires sessions. Connect must honour ctx cancellation.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Session, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Session, error) { return f(ctx) }

// NopSession is a Session with nothing to release.
type NopSession struct{}

func (NopSession) Close() error { return nil }

// GuardedConnector bounds each Connect with a timeout. Every batch gets its
// own attempt, so a batch arriving after the channel recovers is delivered.
type GuardedConnector struct {
	inner   Connector
	timeout time.Duration
}

// NewGuardedConnector wraps inner. A non-positive timeout selects
// DefaultConnectTimeout.
func NewGuardedConnector(inner Connector, timeout time.Duration) *GuardedConnector {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &GuardedConnector{inner: inner, timeout: timeout}
}

// Connect acquires a session within the configured timeout.
func (g *GuardedConnector) Connect(ctx context.Context) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	sess, err := g.inner.Connect(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrConnectTimeout, g.timeout)
		}
		return nil, err
	}
	if sess == nil {
		return nil, errors.New("connector returned no session")
	}
	return sess, nil
}
