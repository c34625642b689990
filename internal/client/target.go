package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/manifest-network/benchie/internal/utils"
)

const (
	inboundAddressesPath = "/mayachain/inbound_addresses"
	asgardVaultsPath     = "/mayachain/vaults/asgard"
	latestBlockPath      = "/cosmos/base/tendermint/v1beta1/blocks/latest"
)

// ErrVaultNotFound is returned when the target network reports no vault for a chain.
var ErrVaultNotFound = errors.New("vault not found")

// TargetClient queries the target network's REST API.
type TargetClient struct {
	http    *resty.Client
	limiter *rate.Limiter
}

type inboundAddress struct {
	Chain   string `json:"chain"`
	PubKey  string `json:"pub_key"`
	Address string `json:"address"`
	Halted  bool   `json:"halted"`
}

type asgardVault struct {
	PubKey string `json:"pub_key"`
	Status string `json:"status"`
}

type latestBlock struct {
	Block struct {
		Header struct {
			Height string `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

// NewTargetClient returns a client for the REST API at baseURL. A non-positive rateLimit disables limiting.
func NewTargetClient(baseURL string, timeout time.Duration, rateLimit float64) *TargetClient {
	limit := rate.Inf
	if rateLimit > 0 {
		limit = rate.Limit(rateLimit)
	}
	return &TargetClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *TargetClient) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(result).
		Get(path)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("query %s failed: %s", path, resp.Status())
	}
	return nil
}

// VaultAddress returns the inbound vault address for chain.
func (c *TargetClient) VaultAddress(ctx context.Context, chain string) (string, error) {
	var addrs []inboundAddress
	if err := c.get(ctx, inboundAddressesPath, &addrs); err != nil {
		return "", err
	}
	for _, a := range addrs {
		if strings.EqualFold(a.Chain, chain) && a.Address != "" {
			return a.Address, nil
		}
	}
	return "", fmt.Errorf("%w: chain %s", ErrVaultNotFound, chain)
}

// VaultPubkey returns the public key of the first asgard vault.
func (c *TargetClient) VaultPubkey(ctx context.Context) (string, error) {
	var vaults []asgardVault
	if err := c.get(ctx, asgardVaultsPath, &vaults); err != nil {
		return "", err
	}
	for _, v := range vaults {
		if v.PubKey != "" {
			return v.PubKey, nil
		}
	}
	return "", fmt.Errorf("%w: no asgard vault", ErrVaultNotFound)
}

// BlockHeight returns the latest block height of the target network.
func (c *TargetClient) BlockHeight(ctx context.Context) (int64, error) {
	var block latestBlock
	if err := c.get(ctx, latestBlockPath, &block); err != nil {
		return 0, err
	}
	return utils.ParseHeight(block.Block.Header.Height)
}
