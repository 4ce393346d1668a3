package solana

import (
	"context"
	"fmt"
	"sync"

	"clmmgate/internal/model"
)

// Registry resolves SPL token metadata. Decimals come from the mint;
// symbols are not stored on chain, so known mints are mapped through
// configuration and the rest fall back to a shortened address.
type Registry struct {
	client  *Client
	symbols map[string]string

	mu   sync.RWMutex
	data map[string]model.TokenRef
}

func NewRegistry(client *Client, symbols map[string]string) *Registry {
	return &Registry{
		client:  client,
		symbols: symbols,
		data:    make(map[string]model.TokenRef),
	}
}

func (g *Registry) Resolve(ctx context.Context, address string) (model.TokenRef, error) {
	g.mu.RLock()
	ref, ok := g.data[address]
	g.mu.RUnlock()
	if ok {
		return ref, nil
	}

	decimals, err := g.client.GetTokenSupply(ctx, address)
	if err != nil {
		return model.TokenRef{}, fmt.Errorf("mint %s decimals: %w", address, err)
	}

	ref = model.TokenRef{
		Address:  address,
		Symbol:   g.symbolFor(address),
		Decimals: decimals,
	}

	g.mu.Lock()
	g.data[address] = ref
	g.mu.Unlock()
	return ref, nil
}

func (g *Registry) symbolFor(address string) string {
	if symbol, ok := g.symbols[address]; ok {
		return symbol
	}
	if len(address) > 8 {
		return address[:4] + ".." + address[len(address)-4:]
	}
	return address
}
