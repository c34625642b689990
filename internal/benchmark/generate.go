package benchmark

import (
	"fmt"

	"github.com/manifest-network/benchie/internal/config"
	"github.com/manifest-network/benchie/internal/models"
)

const (
	// seedUnits is the per-transaction funding, in whole units, given to each seeded account.
	seedUnits = 100
	// txUnits is the amount, in whole units, of each coin in a benchmark transaction.
	txUnits = 10
)

// Assets names the chain and assets a benchmark moves.
type Assets struct {
	Chain  string
	Source string
	Target string
}

// Memo returns the memo shared by every benchmark transaction of workload w.
func Memo(w config.Workload, asset string) string {
	return fmt.Sprintf("%s:%s", w, asset)
}

// Generate returns n transactions of workload w from `from` to `to`.
// Swaps carry the target asset only; liquidity adds carry both assets.
func Generate(w config.Workload, n int, assets Assets, from, to string) []models.Transaction {
	if n <= 0 {
		return []models.Transaction{}
	}
	memo := Memo(w, assets.Source)
	txs := make([]models.Transaction, 0, n)
	for i := 0; i < n; i++ {
		var coins []models.Coin
		switch w {
		case config.WorkloadAdd:
			coins = []models.Coin{
				models.NewCoin(assets.Target, txUnits),
				models.NewCoin(assets.Source, txUnits),
			}
		case config.WorkloadSwap:
			coins = []models.Coin{
				models.NewCoin(assets.Target, txUnits),
			}
		}
		txs = append(txs, models.Transaction{
			Chain: assets.Chain,
			From:  from,
			To:    to,
			Coins: coins,
			Memo:  memo,
		})
	}
	return txs
}
