// Package gateway wires configured networks to position services and
// exposes the public operations: position info, listing and close.
package gateway

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"clmmgate/internal/ammcalc"
	"clmmgate/internal/chain/evm"
	"clmmgate/internal/chain/solana"
	"clmmgate/internal/config"
	"clmmgate/internal/model"
	"clmmgate/internal/position"
	"clmmgate/internal/retry"
)

// Journal records close outcomes after the fact. Journal failures are
// logged and never fail the close itself.
type Journal interface {
	RecordClose(ctx context.Context, positionID, owner string, res *model.CloseResult) error
}

type network struct {
	cfg     config.NetworkConfig
	service *position.Service
	// canClose is false for read-only networks (no signing key or no
	// transaction builder).
	canClose bool
	close    func()
}

// Gateway serves position operations across all configured networks.
type Gateway struct {
	networks map[string]*network
	journal  Journal
	logger   *zap.Logger
}

// Option customizes gateway construction.
type Option func(*options)

type options struct {
	journal    Journal
	txBuilders map[string]solana.TxBuilder
}

// WithJournal attaches a close journal.
func WithJournal(j Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithTxBuilder attaches a Solana transaction builder to a network.
func WithTxBuilder(networkName string, b solana.TxBuilder) Option {
	return func(o *options) {
		o.txBuilders[networkName] = b
	}
}

// New builds a gateway from configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{txBuilders: map[string]solana.TxBuilder{}}
	for _, opt := range opts {
		opt(o)
	}

	g := &Gateway{
		networks: make(map[string]*network),
		journal:  o.journal,
		logger:   logger,
	}

	for name, netCfg := range cfg.Networks {
		var (
			net *network
			err error
		)
		switch netCfg.Kind {
		case "evm":
			net, err = buildEVMNetwork(ctx, name, netCfg, logger)
		case "solana":
			net, err = buildSolanaNetwork(name, netCfg, o.txBuilders[name], logger)
		default:
			err = fmt.Errorf("unknown network kind %q", netCfg.Kind)
		}
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("network %s: %w", name, err)
		}
		if cfg.EnumerateLimit > 0 {
			net.service.EnumerateLimit = cfg.EnumerateLimit
		}
		g.networks[name] = net
	}

	return g, nil
}

func buildEVMNetwork(ctx context.Context, name string, netCfg config.NetworkConfig, logger *zap.Logger) (*network, error) {
	client, err := evm.NewClient(ctx, netCfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainCfg := evm.Config{
		PositionManager:     common.HexToAddress(netCfg.PositionManager),
		Factory:             common.HexToAddress(netCfg.Factory),
		WrappedNativeSymbol: netCfg.WrappedNativeSymbol,
	}

	registry, err := evm.NewRegistry(client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	reader, err := evm.NewReader(client, chainCfg, registry, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	planner, err := evm.NewPlanner(chainCfg)
	if err != nil {
		client.Close()
		return nil, err
	}

	backend := position.Backend{
		Network:             name,
		WrappedNativeSymbol: netCfg.WrappedNativeSymbol,
		Model:               position.Atomic,
		State:               reader,
		Positions:           reader,
		Tokens:              registry,
		Estimator:           ammcalc.NewEstimator(reader),
		Planner:             planner,
	}

	canClose := false
	if netCfg.PrivateKey != "" {
		signer, err := evm.NewPrivateKeySigner(netCfg.PrivateKey)
		if err != nil {
			client.Close()
			return nil, err
		}
		submitter, err := evm.NewSubmitter(ctx, client, signer)
		if err != nil {
			client.Close()
			return nil, err
		}
		backend.Submitter = submitter
		canClose = true
	}

	return &network{
		cfg:      netCfg,
		service:  position.NewService(backend, retry.Default(), logger.With(zap.String("network", name))),
		canClose: canClose,
		close:    client.Close,
	}, nil
}

func buildSolanaNetwork(name string, netCfg config.NetworkConfig, builder solana.TxBuilder, logger *zap.Logger) (*network, error) {
	client := solana.NewClient(netCfg.RPCURL)

	chainCfg := solana.Config{
		ProgramID:           netCfg.ProgramID,
		WrappedNativeSymbol: netCfg.WrappedNativeSymbol,
		TokenSymbols:        netCfg.TokenSymbols,
	}

	registry := solana.NewRegistry(client, netCfg.TokenSymbols)
	reader, err := solana.NewReader(client, chainCfg, registry, logger)
	if err != nil {
		return nil, err
	}

	backend := position.Backend{
		Network:             name,
		WrappedNativeSymbol: netCfg.WrappedNativeSymbol,
		Model:               position.Sequential,
		State:               reader,
		Positions:           reader,
		Tokens:              registry,
		Estimator:           ammcalc.NewEstimator(reader),
		Submitter:           solana.NewSubmitter(client),
	}

	canClose := builder != nil
	if canClose {
		backend.Planner = solana.NewPlanner(client, builder)
	}

	return &network{
		cfg:      netCfg,
		service:  position.NewService(backend, retry.Default(), logger.With(zap.String("network", name))),
		canClose: canClose,
		close:    func() {},
	}, nil
}

// Close releases all network clients.
func (g *Gateway) Close() {
	for _, net := range g.networks {
		net.close()
	}
}

func (g *Gateway) network(name string) (*network, error) {
	net, ok := g.networks[name]
	if !ok {
		return nil, model.Errorf(model.KindInvalidRequest, "network %q is not configured", name)
	}
	return net, nil
}

// resolveOwner falls back to the network's default wallet.
func (g *Gateway) resolveOwner(net *network, owner string) (string, error) {
	if owner != "" {
		return owner, nil
	}
	if net.cfg.DefaultWallet == "" {
		return "", model.Errorf(model.KindInvalidRequest, "owner is required and no default wallet is configured")
	}
	return net.cfg.DefaultWallet, nil
}

// PositionInfo returns a position snapshot enriched with uncollected fees.
func (g *Gateway) PositionInfo(ctx context.Context, networkName, positionID string) (*model.PositionInfo, error) {
	net, err := g.network(networkName)
	if err != nil {
		return nil, err
	}
	return net.service.GetPositionInfo(ctx, positionID)
}

// ListPositions lists open positions held by owner, or by the network's
// default wallet when owner is empty.
func (g *Gateway) ListPositions(ctx context.Context, networkName, owner string) ([]model.PositionInfo, error) {
	net, err := g.network(networkName)
	if err != nil {
		return nil, err
	}
	owner, err = g.resolveOwner(net, owner)
	if err != nil {
		return nil, err
	}
	return net.service.ListPositions(ctx, owner)
}

// ClosePosition runs the close state machine and journals the outcome.
func (g *Gateway) ClosePosition(ctx context.Context, networkName, owner, positionID string) (*model.CloseResult, error) {
	net, err := g.network(networkName)
	if err != nil {
		return nil, err
	}
	if !net.canClose {
		return nil, model.Errorf(model.KindInvalidRequest, "network %q is read-only: no signing key configured", networkName)
	}
	owner, err = g.resolveOwner(net, owner)
	if err != nil {
		return nil, err
	}

	result, err := net.service.ClosePosition(ctx, owner, positionID)
	if err != nil {
		return nil, err
	}

	if g.journal != nil {
		if err := g.journal.RecordClose(ctx, positionID, owner, result); err != nil {
			g.logger.Warn("close journal write failed",
				zap.String("network", networkName),
				zap.String("position", positionID),
				zap.String("signature", result.Signature),
				zap.Error(err),
			)
		}
	}
	return result, nil
}
