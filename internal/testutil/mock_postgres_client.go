package testutil

import (
	"context"
	"sync"

	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/postgres"
	"github.com/recruitlink/billing/internal/types"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

type mockTx struct{}

// MockPostgresClient emulates transactions over in-memory stores. Top level
// transactions are serialized and every registered store is restored when fn
// fails, so rollback semantics hold in service tests.
type MockPostgresClient struct {
	mu      sync.Mutex
	stores  []Snapshotter
	logger  *logger.Logger
	PingErr error
}

// NewMockPostgresClient creates a mock client rolling back the given stores
func NewMockPostgresClient(logger *logger.Logger, stores ...Snapshotter) *MockPostgresClient {
	return &MockPostgresClient{
		stores: stores,
		logger: logger,
	}
}

// WithTx executes fn within an emulated transaction. Nested calls behave as savepoints.
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(types.CtxDBTransaction).(*mockTx); ok {
		return c.run(ctx, fn)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run(context.WithValue(ctx, types.CtxDBTransaction, &mockTx{}), fn)
}

func (c *MockPostgresClient) run(ctx context.Context, fn func(context.Context) error) error {
	restores := make([]func(), 0, len(c.stores))
	for _, s := range c.stores {
		restores = append(restores, s.Snapshot())
	}

	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func (c *MockPostgresClient) Ping(context.Context) error {
	return c.PingErr
}
