package benchmark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/manifest-network/benchie/internal/aliases"
	"github.com/manifest-network/benchie/internal/config"
	"github.com/manifest-network/benchie/internal/models"
)

// AliasResolver maps a wallet role on a chain to its address.
type AliasResolver interface {
	Resolve(chain, role string) (string, error)
}

// Seeder funds the test accounts a benchmark run spends from.
type Seeder struct {
	broadcaster *Broadcaster
	resolver    AliasResolver
	assets      Assets
}

// NewSeeder returns a seeder broadcasting through b.
func NewSeeder(b *Broadcaster, resolver AliasResolver, assets Assets) *Seeder {
	return &Seeder{broadcaster: b, resolver: resolver, assets: assets}
}

func (s *Seeder) transfer(fromRole, toRole string, n int, memo string) (models.Transaction, error) {
	from, err := s.resolver.Resolve(s.assets.Chain, fromRole)
	if err != nil {
		return models.Transaction{}, err
	}
	to, err := s.resolver.Resolve(s.assets.Chain, toRole)
	if err != nil {
		return models.Transaction{}, err
	}
	units := int64(n) * seedUnits
	return models.Transaction{
		Chain: s.assets.Chain,
		From:  from,
		To:    to,
		Coins: []models.Coin{
			models.NewCoin(s.assets.Source, units),
			models.NewCoin(s.assets.Target, units),
		},
		Memo: memo,
	}, nil
}

// Seed funds PROVIDER-1 and USER-1 from MASTER. For swaps it also adds PROVIDER-1 liquidity to the vault
// so the swaps have a pool to trade against. Each transfer is its own broadcast; the issued
// transactions are returned in order.
func (s *Seeder) Seed(ctx context.Context, w config.Workload, n int) ([]models.Transaction, error) {
	type step struct {
		from, to, memo string
	}
	steps := []step{
		{from: aliases.Master, to: aliases.Provider1},
		{from: aliases.Master, to: aliases.User1},
	}
	if w == config.WorkloadSwap {
		steps = append(steps, step{from: aliases.Provider1, to: aliases.Vault, memo: "ADD:" + s.assets.Source})
	}

	issued := make([]models.Transaction, 0, len(steps))
	for _, st := range steps {
		tx, err := s.transfer(st.from, st.to, n, st.memo)
		if err != nil {
			return issued, fmt.Errorf("failed to build seed transfer %s -> %s: %w", st.from, st.to, err)
		}
		if err := s.broadcaster.Broadcast(ctx, tx); err != nil {
			return issued, fmt.Errorf("failed to seed %s: %w", st.to, err)
		}
		slog.Debug("Seeded account", "from", st.from, "to", st.to, "memo", st.memo)
		issued = append(issued, tx)
	}
	return issued, nil
}
