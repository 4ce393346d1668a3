package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"clmmgate/internal/model"
)

// Registry resolves ERC-20 metadata and caches it by address. Token symbol
// and decimals are immutable, so entries never expire.
type Registry struct {
	client *Client
	logger *zap.Logger

	mu   sync.RWMutex
	data map[string]model.TokenRef
}

func NewRegistry(client *Client, logger *zap.Logger) (*Registry, error) {
	if err := loadABIs(); err != nil {
		return nil, fmt.Errorf("parse abis: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		client: client,
		logger: logger,
		data:   make(map[string]model.TokenRef),
	}, nil
}

// Resolve returns metadata for the token, fetching it on first use.
func (g *Registry) Resolve(ctx context.Context, address string) (model.TokenRef, error) {
	key := strings.ToLower(address)

	g.mu.RLock()
	ref, ok := g.data[key]
	g.mu.RUnlock()
	if ok {
		return ref, nil
	}

	ref, err := g.fetch(ctx, common.HexToAddress(address))
	if err != nil {
		return model.TokenRef{}, err
	}

	g.mu.Lock()
	g.data[key] = ref
	g.mu.Unlock()
	return ref, nil
}

func (g *Registry) fetch(ctx context.Context, token common.Address) (model.TokenRef, error) {
	ref := model.TokenRef{Address: token.Hex()}

	values, err := contractCall(ctx, g.client, token, erc20ABI, "decimals")
	if err != nil {
		return ref, fmt.Errorf("token %s decimals: %w", token.Hex(), err)
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return ref, fmt.Errorf("token %s decimals: %w", token.Hex(), err)
	}
	ref.Decimals = decimals

	// Some tokens break the string symbol convention; the address still
	// identifies them, so a missing symbol is not fatal.
	if values, err := contractCall(ctx, g.client, token, erc20ABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			ref.Symbol = symbol
		}
	} else {
		g.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return ref, nil
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
