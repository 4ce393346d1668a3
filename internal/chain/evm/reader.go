package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"clmmgate/internal/model"
)

// Config identifies the protocol deployment on one EVM network.
type Config struct {
	PositionManager     common.Address
	Factory             common.Address
	WrappedNativeSymbol string
}

// Reader serves typed pool-state and position reads. Raw ABI decoding is
// confined here; the engine above only sees the data model.
type Reader struct {
	client *Client
	cfg    Config
	tokens *Registry
	logger *zap.Logger
}

func NewReader(client *Client, cfg Config, tokens *Registry, logger *zap.Logger) (*Reader, error) {
	if err := loadABIs(); err != nil {
		return nil, fmt.Errorf("parse abis: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{client: client, cfg: cfg, tokens: tokens, logger: logger}, nil
}

func (r *Reader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	return contractCall(ctx, r.client, to, parsed, method, args...)
}

// contractCall packs, eth_calls and unpacks one view method.
func contractCall(ctx context.Context, client *Client, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := client.CallContract(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// FeeGrowthGlobal reads feeGrowthGlobal{0,1}X128 from the pool.
func (r *Reader) FeeGrowthGlobal(ctx context.Context, pool string, tokenIndex int) (*uint256.Int, error) {
	method := "feeGrowthGlobal0X128"
	if tokenIndex == 1 {
		method = "feeGrowthGlobal1X128"
	}
	values, err := r.call(ctx, common.HexToAddress(pool), poolABI, method)
	if err != nil {
		return nil, err
	}
	return asUint256(values[0])
}

// CurrentTick reads the pool's current tick from slot0.
func (r *Reader) CurrentTick(ctx context.Context, pool string) (int32, error) {
	values, err := r.call(ctx, common.HexToAddress(pool), poolABI, "slot0")
	if err != nil {
		return 0, err
	}
	if len(values) < 2 {
		return 0, fmt.Errorf("slot0: short response")
	}
	tick, err := asBigInt(values[1])
	if err != nil {
		return 0, fmt.Errorf("slot0 tick: %w", err)
	}
	return int24FromBig(tick)
}

// TickOutside reads both feeGrowthOutside accumulators at a tick boundary.
func (r *Reader) TickOutside(ctx context.Context, pool string, tick int32) (*uint256.Int, *uint256.Int, error) {
	values, err := r.call(ctx, common.HexToAddress(pool), poolABI, "ticks", big.NewInt(int64(tick)))
	if err != nil {
		return nil, nil, err
	}
	if len(values) < 4 {
		return nil, nil, fmt.Errorf("ticks(%d): short response", tick)
	}
	outside0, err := asUint256(values[2])
	if err != nil {
		return nil, nil, fmt.Errorf("feeGrowthOutside0: %w", err)
	}
	outside1, err := asUint256(values[3])
	if err != nil {
		return nil, nil, fmt.Errorf("feeGrowthOutside1: %w", err)
	}
	return outside0, outside1, nil
}

// Position reads a full snapshot from the position manager and resolves
// the pool and token metadata behind it.
func (r *Reader) Position(ctx context.Context, positionID string) (*model.PositionSnapshot, error) {
	tokenID, err := parseTokenID(positionID)
	if err != nil {
		return nil, err
	}

	values, err := r.call(ctx, r.cfg.PositionManager, positionManagerABI, "positions", tokenID)
	if err != nil {
		if isTokenGone(err) {
			return nil, model.Errorf(model.KindNotFound, "position %s: %w", positionID, err)
		}
		return nil, err
	}
	if len(values) < 12 {
		return nil, fmt.Errorf("positions(%s): short response", positionID)
	}

	token0Addr, err := asAddress(values[2])
	if err != nil {
		return nil, fmt.Errorf("token0: %w", err)
	}
	token1Addr, err := asAddress(values[3])
	if err != nil {
		return nil, fmt.Errorf("token1: %w", err)
	}
	feeBig, err := asBigInt(values[4])
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	tickLowerBig, err := asBigInt(values[5])
	if err != nil {
		return nil, fmt.Errorf("tickLower: %w", err)
	}
	tickUpperBig, err := asBigInt(values[6])
	if err != nil {
		return nil, fmt.Errorf("tickUpper: %w", err)
	}
	tickLower, err := int24FromBig(tickLowerBig)
	if err != nil {
		return nil, fmt.Errorf("tickLower: %w", err)
	}
	tickUpper, err := int24FromBig(tickUpperBig)
	if err != nil {
		return nil, fmt.Errorf("tickUpper: %w", err)
	}
	liquidity, err := asBigInt(values[7])
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}
	inside0Last, err := asUint256(values[8])
	if err != nil {
		return nil, fmt.Errorf("feeGrowthInside0Last: %w", err)
	}
	inside1Last, err := asUint256(values[9])
	if err != nil {
		return nil, fmt.Errorf("feeGrowthInside1Last: %w", err)
	}
	owed0, err := asBigInt(values[10])
	if err != nil {
		return nil, fmt.Errorf("tokensOwed0: %w", err)
	}
	owed1, err := asBigInt(values[11])
	if err != nil {
		return nil, fmt.Errorf("tokensOwed1: %w", err)
	}

	pool, err := r.poolFor(ctx, token0Addr, token1Addr, feeBig)
	if err != nil {
		return nil, err
	}

	token0, err := r.tokens.Resolve(ctx, token0Addr.Hex())
	if err != nil {
		return nil, fmt.Errorf("resolve token0: %w", err)
	}
	token1, err := r.tokens.Resolve(ctx, token1Addr.Hex())
	if err != nil {
		return nil, fmt.Errorf("resolve token1: %w", err)
	}

	return &model.PositionSnapshot{
		ID:                   positionID,
		PoolAddress:          pool.Hex(),
		Token0:               token0,
		Token1:               token1,
		FeeTier:              uint32(feeBig.Uint64()),
		TickLower:            tickLower,
		TickUpper:            tickUpper,
		Liquidity:            liquidity,
		TokensOwed0:          owed0,
		TokensOwed1:          owed1,
		FeeGrowthInside0Last: inside0Last,
		FeeGrowthInside1Last: inside1Last,
	}, nil
}

// OwnerOf resolves the position NFT's owner.
func (r *Reader) OwnerOf(ctx context.Context, positionID string) (string, error) {
	tokenID, err := parseTokenID(positionID)
	if err != nil {
		return "", err
	}
	values, err := r.call(ctx, r.cfg.PositionManager, positionManagerABI, "ownerOf", tokenID)
	if err != nil {
		if isTokenGone(err) {
			return "", model.Errorf(model.KindNotFound, "position %s: %w", positionID, err)
		}
		return "", err
	}
	owner, err := asAddress(values[0])
	if err != nil {
		return "", err
	}
	return owner.Hex(), nil
}

// PositionIDs enumerates the owner's position token ids via the ERC721
// enumeration extension, at most limit entries. A failed read of one index
// is logged and skipped; a single bad index must not fail the listing.
func (r *Reader) PositionIDs(ctx context.Context, owner string, limit int) ([]string, error) {
	ownerAddr := common.HexToAddress(owner)
	values, err := r.call(ctx, r.cfg.PositionManager, positionManagerABI, "balanceOf", ownerAddr)
	if err != nil {
		return nil, err
	}
	count, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}

	total := int(count.Int64())
	if limit > 0 && total > limit {
		total = limit
	}

	ids := make([]string, 0, total)
	for i := 0; i < total; i++ {
		values, err := r.call(ctx, r.cfg.PositionManager, positionManagerABI, "tokenOfOwnerByIndex", ownerAddr, big.NewInt(int64(i)))
		if err != nil {
			r.logger.Warn("position index read failed, skipping",
				zap.String("owner", owner), zap.Int("index", i), zap.Error(err))
			continue
		}
		id, err := asBigInt(values[0])
		if err != nil {
			r.logger.Warn("position index decode failed, skipping",
				zap.String("owner", owner), zap.Int("index", i), zap.Error(err))
			continue
		}
		ids = append(ids, id.String())
	}
	return ids, nil
}

func (r *Reader) poolFor(ctx context.Context, token0, token1 common.Address, fee *big.Int) (common.Address, error) {
	values, err := r.call(ctx, r.cfg.Factory, factoryABI, "getPool", token0, token1, fee)
	if err != nil {
		return common.Address{}, err
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, err
	}
	if pool == (common.Address{}) {
		return common.Address{}, model.Errorf(model.KindNotFound, "no pool for %s/%s fee %s", token0.Hex(), token1.Hex(), fee)
	}
	return pool, nil
}

func parseTokenID(positionID string) (*big.Int, error) {
	if positionID == "" {
		return nil, model.Errorf(model.KindInvalidRequest, "position id is required")
	}
	id, ok := new(big.Int).SetString(positionID, 10)
	if !ok || id.Sign() < 0 {
		return nil, model.Errorf(model.KindInvalidRequest, "malformed position id %q", positionID)
	}
	return id, nil
}

// isTokenGone matches the revert reasons the position manager emits for a
// burned or never-minted token id.
func isTokenGone(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid token id") ||
		strings.Contains(msg, "nonexistent token") ||
		strings.Contains(msg, "execution reverted")
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint256(value interface{}) (*uint256.Int, error) {
	b, err := asBigInt(value)
	if err != nil {
		return nil, err
	}
	out, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value %s overflows uint256", b)
	}
	return out, nil
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
