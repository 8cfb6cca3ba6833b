package queueaccess

import (
	"context"
	"fmt"

	"github.com/703deuce/upscale/internal/api"
	"github.com/703deuce/upscale/internal/queue"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback probes the daemon API first and falls back to opening
// the queue database directly when the daemon is unreachable.
func OpenWithFallback(
	ctx context.Context,
	dial func(context.Context) (*api.Client, error),
	openStore func() (*queue.Store, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(ctx); err == nil {
			return Session{Access: NewClientAccess(client)}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store),
		close:  store.Close,
	}, nil
}
