package benchmark

import (
	"context"

	"github.com/manifest-network/benchie/internal/metrics"
	"github.com/manifest-network/benchie/internal/models"
)

// Transferer submits transactions to the source chain in a single call.
type Transferer interface {
	Transfer(ctx context.Context, txs ...models.Transaction) error
}

// Broadcaster submits transactions to the source chain. Submission is not confirmation.
type Broadcaster struct {
	source  Transferer
	metrics *metrics.Metrics
}

// NewBroadcaster returns a broadcaster for source. m may be nil.
func NewBroadcaster(source Transferer, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{source: source, metrics: m}
}

// Broadcast submits txs as one call. Errors are returned as-is; nothing is retried.
func (b *Broadcaster) Broadcast(ctx context.Context, txs ...models.Transaction) error {
	if err := b.source.Transfer(ctx, txs...); err != nil {
		b.metrics.BroadcastFailed()
		return err
	}
	b.metrics.Broadcasted(len(txs))
	return nil
}
