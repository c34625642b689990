package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/manifest-network/benchie/internal/models"
)

const broadcastPath = "/broadcast"

// SourceClient talks to the mock source chain.
type SourceClient struct {
	http *resty.Client

	mu    sync.RWMutex
	vault string
}

type broadcastCoin struct {
	Asset  string `json:"asset"`
	Denom  string `json:"denom"`
	Amount int64  `json:"amount"`
}

type broadcastTx struct {
	Chain string          `json:"chain"`
	From  string          `json:"from"`
	To    string          `json:"to"`
	Coins []broadcastCoin `json:"coins"`
	Memo  string          `json:"memo,omitempty"`
}

// NewSourceClient returns a client for the mock source chain at baseURL.
func NewSourceClient(baseURL string, timeout time.Duration) *SourceClient {
	return &SourceClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// ErrNoVaultAddress is returned when a transaction has no recipient and no vault address is recorded.
var ErrNoVaultAddress = errors.New("no vault address recorded")

// SetVaultAddress records the vault address transactions without a recipient are routed to.
func (c *SourceClient) SetVaultAddress(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vault = addr
}

// VaultAddress returns the address recorded by SetVaultAddress.
func (c *SourceClient) VaultAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vault
}

// Transfer submits txs in a single broadcast call. It returns once the mock chain accepted the request,
// which does not imply the transactions were observed downstream. Transactions with an empty To are sent
// to the vault address.
func (c *SourceClient) Transfer(ctx context.Context, txs ...models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	vault := c.VaultAddress()
	payload := make([]broadcastTx, 0, len(txs))
	for _, tx := range txs {
		if tx.To == "" {
			if vault == "" {
				return fmt.Errorf("failed to route transaction from %s: %w", tx.From, ErrNoVaultAddress)
			}
			tx.To = vault
		}
		coins := make([]broadcastCoin, 0, len(tx.Coins))
		for _, coin := range tx.Coins {
			coins = append(coins, broadcastCoin{Asset: coin.Asset, Denom: coin.Symbol(), Amount: coin.Amount})
		}
		payload = append(payload, broadcastTx{
			Chain: tx.Chain,
			From:  tx.From,
			To:    tx.To,
			Coins: coins,
			Memo:  tx.Memo,
		})
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(broadcastPath)
	if err != nil {
		return fmt.Errorf("failed to broadcast %d transactions: %w", len(txs), err)
	}
	if resp.IsError() {
		return fmt.Errorf("broadcast rejected: %s: %s", resp.Status(), resp.String())
	}
	return nil
}
