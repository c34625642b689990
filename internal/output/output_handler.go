package output

import (
	"context"
	"time"

	"github.com/manifest-network/benchie/internal/models"
)

type ResultWriter interface {
	// WriteResult writes the result of a completed benchmark run to the output.
	WriteResult(ctx context.Context, result *models.Result) error

	// Close closes the output.
	Close() error
}

// Record is the machine-readable form of a benchmark result.
type Record struct {
	Workload     string    `json:"workload"`
	Count        int       `json:"count"`
	Completed    int       `json:"completed"`
	VaultAddress string    `json:"vault_address"`
	VaultPubKey  string    `json:"vault_pubkey"`
	StartHeight  int64     `json:"start_height"`
	EndHeight    int64     `json:"end_height"`
	TotalBlocks  int64     `json:"total_blocks"`
	TotalSeconds float64   `json:"total_seconds"`
	TxPerSecond  float64   `json:"tx_per_second"`
	TxPerBlock   float64   `json:"tx_per_block"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// NewRecord converts a result into its machine-readable form.
func NewRecord(r *models.Result) Record {
	return Record{
		Workload:     r.Workload,
		Count:        r.Count,
		Completed:    r.Completed,
		VaultAddress: r.Vault.Address,
		VaultPubKey:  r.Vault.PubKey,
		StartHeight:  r.StartHeight,
		EndHeight:    r.EndHeight,
		TotalBlocks:  r.TotalBlocks,
		TotalSeconds: r.TotalTime.Seconds(),
		TxPerSecond:  r.TxPerSecond(),
		TxPerBlock:   r.TxPerBlock(),
		StartedAt:    r.StartedAt.UTC(),
		FinishedAt:   r.FinishedAt.UTC(),
	}
}

// Discard is a ResultWriter that drops results.
type Discard struct{}

func (Discard) WriteResult(context.Context, *models.Result) error { return nil }

func (Discard) Close() error { return nil }
