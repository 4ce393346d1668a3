package solana

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"clmmgate/internal/model"
)

// Config identifies the CLMM program deployment on one Solana cluster.
type Config struct {
	ProgramID           string
	WrappedNativeSymbol string
	// TokenSymbols maps known mint addresses to display symbols; the chain
	// itself only stores decimals.
	TokenSymbols map[string]string
}

// Reader serves typed pool-state and position reads from raw account data.
type Reader struct {
	client    *Client
	cfg       Config
	programID []byte
	tokens    *Registry
	logger    *zap.Logger
}

func NewReader(client *Client, cfg Config, tokens *Registry, logger *zap.Logger) (*Reader, error) {
	programID, err := decodePubkey(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		client:    client,
		cfg:       cfg,
		programID: programID,
		tokens:    tokens,
		logger:    logger,
	}, nil
}

func (r *Reader) fetchPool(ctx context.Context, pool string) (*poolAccount, error) {
	info, err := r.client.GetAccountInfo(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", pool, err)
	}
	if info == nil {
		return nil, model.Errorf(model.KindNotFound, "pool account %s does not exist", pool)
	}
	return decodePoolAccount(info.Data)
}

// FeeGrowthGlobal reads the pool's global fee accumulator for token index
// 0 or 1.
func (r *Reader) FeeGrowthGlobal(ctx context.Context, pool string, tokenIndex int) (*uint256.Int, error) {
	acct, err := r.fetchPool(ctx, pool)
	if err != nil {
		return nil, err
	}
	if tokenIndex == 1 {
		return acct.FeeGrowthGlobalB, nil
	}
	return acct.FeeGrowthGlobalA, nil
}

// CurrentTick reads the pool's current tick index.
func (r *Reader) CurrentTick(ctx context.Context, pool string) (int32, error) {
	acct, err := r.fetchPool(ctx, pool)
	if err != nil {
		return 0, err
	}
	return acct.TickCurrentIndex, nil
}

// TickOutside reads both feeGrowthOutside accumulators at a tick boundary
// from its tick-array account. A missing tick array means the tick was
// never initialized and its accumulators are zero.
func (r *Reader) TickOutside(ctx context.Context, pool string, tick int32) (*uint256.Int, *uint256.Int, error) {
	acct, err := r.fetchPool(ctx, pool)
	if err != nil {
		return nil, nil, err
	}

	start := tickArrayStart(tick, acct.TickSpacing)
	address, err := r.tickArrayAddress(pool, start)
	if err != nil {
		return nil, nil, err
	}

	info, err := r.client.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch tick array %s: %w", address, err)
	}
	if info == nil {
		return uint256.NewInt(0), uint256.NewInt(0), nil
	}
	return tickOutsideAt(info.Data, start, tick, acct.TickSpacing)
}

func (r *Reader) tickArrayAddress(pool string, startTick int32) (string, error) {
	poolKey, err := decodePubkey(pool)
	if err != nil {
		return "", err
	}
	address, _, err := FindProgramAddress([][]byte{
		[]byte("tick_array"),
		poolKey,
		[]byte(strconv.FormatInt(int64(startTick), 10)),
	}, r.programID)
	if err != nil {
		return "", fmt.Errorf("derive tick array for start %d: %w", startTick, err)
	}
	return address, nil
}

// Position fetches and decodes a position account, resolving its pool and
// token metadata. The position id is the position account address.
func (r *Reader) Position(ctx context.Context, positionID string) (*model.PositionSnapshot, error) {
	if _, err := decodePubkey(positionID); err != nil {
		return nil, model.Errorf(model.KindInvalidRequest, "malformed position id %q", positionID)
	}

	info, err := r.client.GetAccountInfo(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("fetch position %s: %w", positionID, err)
	}
	if info == nil {
		return nil, model.Errorf(model.KindNotFound, "position account %s does not exist", positionID)
	}

	pos, err := decodePositionAccount(info.Data)
	if err != nil {
		return nil, err
	}
	pool, err := r.fetchPool(ctx, pos.Whirlpool)
	if err != nil {
		return nil, err
	}

	token0, err := r.tokens.Resolve(ctx, pool.TokenMintA)
	if err != nil {
		return nil, fmt.Errorf("resolve token0: %w", err)
	}
	token1, err := r.tokens.Resolve(ctx, pool.TokenMintB)
	if err != nil {
		return nil, fmt.Errorf("resolve token1: %w", err)
	}

	return &model.PositionSnapshot{
		ID:                   positionID,
		PoolAddress:          pos.Whirlpool,
		Token0:               token0,
		Token1:               token1,
		FeeTier:              uint32(pool.FeeRate),
		TickLower:            pos.TickLowerIndex,
		TickUpper:            pos.TickUpperIndex,
		Liquidity:            pos.Liquidity.ToBig(),
		TokensOwed0:          new(big.Int).SetUint64(pos.FeeOwedA),
		TokensOwed1:          new(big.Int).SetUint64(pos.FeeOwedB),
		FeeGrowthInside0Last: pos.FeeGrowthCheckpointA,
		FeeGrowthInside1Last: pos.FeeGrowthCheckpointB,
	}, nil
}

// OwnerOf resolves the holder of the position NFT: the owner field of the
// token account holding the mint's single token.
func (r *Reader) OwnerOf(ctx context.Context, positionID string) (string, error) {
	info, err := r.client.GetAccountInfo(ctx, positionID)
	if err != nil {
		return "", fmt.Errorf("fetch position %s: %w", positionID, err)
	}
	if info == nil {
		return "", model.Errorf(model.KindNotFound, "position account %s does not exist", positionID)
	}
	pos, err := decodePositionAccount(info.Data)
	if err != nil {
		return "", err
	}

	holders, err := r.client.GetTokenLargestAccounts(ctx, pos.PositionMint)
	if err != nil {
		return "", fmt.Errorf("locate position token account: %w", err)
	}
	if len(holders) == 0 {
		return "", model.Errorf(model.KindNotFound, "position %s has no token holder", positionID)
	}

	tokenAccount, err := r.client.GetAccountInfo(ctx, holders[0])
	if err != nil {
		return "", fmt.Errorf("fetch token account %s: %w", holders[0], err)
	}
	if tokenAccount == nil || len(tokenAccount.Data) < 64 {
		return "", fmt.Errorf("token account %s: malformed data", holders[0])
	}
	// SPL token account layout: mint at 0, owner at 32.
	return encodePubkey(tokenAccount.Data[32:64]), nil
}

// PositionIDs scans the owner's NFT-shaped token accounts and keeps those
// whose mint derives to an existing position account under the program.
// A failed read of one candidate is logged and skipped; a single bad
// account must not fail the listing.
func (r *Reader) PositionIDs(ctx context.Context, owner string, limit int) ([]string, error) {
	accounts, err := r.client.GetTokenAccountsByOwner(ctx, owner, "")
	if err != nil {
		return nil, fmt.Errorf("list token accounts: %w", err)
	}

	var ids []string
	for _, acct := range accounts {
		if limit > 0 && len(ids) >= limit {
			break
		}
		if acct.Amount != "1" || acct.Decimals != 0 {
			continue
		}

		mintKey, err := decodePubkey(acct.Mint)
		if err != nil {
			r.logger.Debug("skip malformed mint", zap.String("mint", acct.Mint), zap.Error(err))
			continue
		}
		address, _, err := FindProgramAddress([][]byte{[]byte("position"), mintKey}, r.programID)
		if err != nil {
			r.logger.Debug("skip underivable position", zap.String("mint", acct.Mint), zap.Error(err))
			continue
		}

		info, err := r.client.GetAccountInfo(ctx, address)
		if err != nil {
			r.logger.Warn("position account read failed, skipping",
				zap.String("owner", owner),
				zap.String("mint", acct.Mint),
				zap.String("position", address),
				zap.Error(err),
			)
			continue
		}
		if info == nil || info.Owner != r.cfg.ProgramID {
			continue
		}
		ids = append(ids, address)
	}
	return ids, nil
}
