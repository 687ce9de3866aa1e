package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metamodel/internal/orm/events"
)

func TestRetryConfig(t *testing.T) {
	config := &RetryConfig{MaxRetries: 3, BaseBackoff: time.Millisecond}
	transient := errors.New("connection reset")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := config.do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := config.do(context.Background(), func() error {
			calls++
			return transient
		})
		assert.ErrorIs(t, err, transient)
		assert.Contains(t, err.Error(), "failed after 3 attempts")
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		calls := 0
		err := config.do(context.Background(), func() error {
			calls++
			return Permanent(transient)
		})
		assert.ErrorIs(t, err, ErrPermanent)
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := config.do(ctx, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("timeout"), true},
		{"permanent", Permanent(errors.New("bad payload")), false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
	assert.Nil(t, Permanent(nil))
}

func TestManager_PublishRetry(t *testing.T) {
	e := newEnv(t)
	calls := 0
	publisher := events.PublisherFunc(func(ctx context.Context, record *events.ChangeRecord) error {
		calls++
		if calls == 1 {
			return errors.New("connection reset")
		}
		return nil
	})

	m := NewManager(e.registry, publisher, WithRetry(&RetryConfig{MaxRetries: 2, BaseBackoff: time.Millisecond}))
	uow := m.Begin(context.Background())
	require.NoError(t, uow.Create(newOrder("A1", 100), e.plan(t, "Order", "order-list")))

	records, err := uow.Commit(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, calls)
}
