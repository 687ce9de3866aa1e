package events

import (
	"context"
	"errors"
	"sync"
)

// Publisher hands finished records to event delivery
type Publisher interface {
	Publish(ctx context.Context, record *ChangeRecord) error
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, record *ChangeRecord) error

// Publish implements Publisher
func (f PublisherFunc) Publish(ctx context.Context, record *ChangeRecord) error {
	return f(ctx, record)
}

// MultiPublisher publishes to every publisher and joins their errors
type MultiPublisher []Publisher

// Publish implements Publisher
func (m MultiPublisher) Publish(ctx context.Context, record *ChangeRecord) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published records in memory
type Recorder struct {
	mu      sync.Mutex
	records []*ChangeRecord
}

// Publish implements Publisher
func (r *Recorder) Publish(_ context.Context, record *ChangeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// Records returns the published records in order
func (r *Recorder) Records() []*ChangeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*ChangeRecord, len(r.records))
	copy(result, r.records)
	return result
}
