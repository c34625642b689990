package models

import (
	"fmt"
	"strings"
	"time"
)

// One is the number of minor units in one whole asset.
const One int64 = 100_000_000

// Coin represents an amount of a single asset in minor units.
type Coin struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

// NewCoin returns a coin of the given asset holding whole units.
func NewCoin(asset string, units int64) Coin {
	return Coin{Asset: asset, Amount: units * One}
}

// Symbol returns the part of the asset identifier after the chain prefix.
// BNB.BNB yields BNB, MAYA.CACAO yields CACAO.
func (c Coin) Symbol() string {
	if _, symbol, ok := strings.Cut(c.Asset, "."); ok {
		return symbol
	}
	return c.Asset
}

func (c Coin) String() string {
	return fmt.Sprintf("%d %s", c.Amount, c.Asset)
}

// Transaction represents a transfer on the source chain.
type Transaction struct {
	Chain string
	From  string
	To    string
	Coins []Coin
	Memo  string
}

// Event represents an event emitted by the target network.
type Event struct {
	Type       string
	Height     int64
	Attributes map[string]string
}

// VaultInfo holds the vault the benchmark routes transactions to.
type VaultInfo struct {
	Address string
	PubKey  string
}

// Result represents the outcome of a completed benchmark run.
type Result struct {
	Workload    string
	Count       int
	Completed   int
	Vault       VaultInfo
	StartHeight int64
	EndHeight   int64
	TotalBlocks int64
	TotalTime   time.Duration
	StartedAt   time.Time
	FinishedAt  time.Time
}

// TxPerSecond returns the observed throughput in completed transactions per second.
func (r *Result) TxPerSecond() float64 {
	if r.TotalTime <= 0 {
		return 0
	}
	return float64(r.Completed) / r.TotalTime.Seconds()
}

// TxPerBlock returns the average number of completed transactions per block.
func (r *Result) TxPerBlock() float64 {
	if r.TotalBlocks <= 0 {
		return 0
	}
	return float64(r.Completed) / float64(r.TotalBlocks)
}
