// Package aliases maps symbolic wallet roles to chain addresses.
package aliases

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Roles used by the benchmark.
const (
	Master    = "MASTER"
	Provider1 = "PROVIDER-1"
	User1     = "USER-1"
	Vault     = "VAULT"
)

// ErrUnknownAlias is returned when a chain or role has no address.
var ErrUnknownAlias = errors.New("unknown alias")

var defaultAliases = map[string]map[string]string{
	"BNB": {
		Master:    "tbnb1ht7v08hv2lhtmk8y7szl2hjexqryc3hcldlztl",
		Provider1: "tbnb1lltanv67yztkpt5czw4ajsmg94dlqnnhrq7zqm",
		User1:     "tbnb157dxmw9jz5emuf0apj4d6p3ee42ck0uwksxfff",
	},
}

// Resolver resolves (chain, role) pairs. VAULT is only known once the vault address has been fetched.
type Resolver struct {
	mu      sync.RWMutex
	aliases map[string]map[string]string
}

// NewResolver returns a resolver seeded with the built-in test wallets, with overrides
// (chain -> role -> address) applied on top.
func NewResolver(overrides map[string]map[string]string) (*Resolver, error) {
	r := &Resolver{aliases: make(map[string]map[string]string)}
	for chain, roles := range defaultAliases {
		for role, addr := range roles {
			r.set(chain, role, addr)
		}
	}
	for chain, roles := range overrides {
		for role, addr := range roles {
			if chain == "" || role == "" || addr == "" {
				return nil, fmt.Errorf("invalid alias %q/%q: chain, role and address are required", chain, role)
			}
			r.set(chain, role, addr)
		}
	}
	return r, nil
}

func (r *Resolver) set(chain, role, addr string) {
	chain, role = strings.ToUpper(chain), strings.ToUpper(role)
	if r.aliases[chain] == nil {
		r.aliases[chain] = make(map[string]string)
	}
	r.aliases[chain][role] = addr
}

// SetVault records the vault address for chain.
func (r *Resolver) SetVault(chain, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set(chain, Vault, addr)
}

// Resolve returns the address of role on chain.
func (r *Resolver) Resolve(chain, role string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.aliases[strings.ToUpper(chain)][strings.ToUpper(role)]
	if !ok || addr == "" {
		return "", fmt.Errorf("%w: %s %s", ErrUnknownAlias, chain, role)
	}
	return addr, nil
}
