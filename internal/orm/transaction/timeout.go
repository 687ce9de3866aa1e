package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/conduit-lang/metamodel/internal/orm/events"
)

// WithTimeout runs WithUnitOfWork under a deadline. A unit whose work or
// publishing overruns the deadline reports ErrUnitOfWorkTimeout.
func (m *Manager) WithTimeout(
	ctx context.Context,
	timeout time.Duration,
	fn func(ctx context.Context, uow *UnitOfWork) error,
) ([]*events.ChangeRecord, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	records, err := m.WithUnitOfWork(timeoutCtx, fn)
	if err != nil && timeoutCtx.Err() == context.DeadlineExceeded {
		return records, fmt.Errorf("%w: exceeded %v: %w", ErrUnitOfWorkTimeout, timeout, err)
	}
	return records, err
}
