package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/mr-tron/base58"
)

// Account data is Borsh-packed with fixed field widths, so every field
// lives at a known little-endian offset.
const (
	discriminatorLen = 8

	tickArraySize = 88
	tickLen       = 113 // initialized(1) + liquidityNet(16) + liquidityGross(16) + outsideA(16) + outsideB(16) + rewardGrowths(48)

	poolAccountMinLen      = 261
	positionAccountMinLen  = 144
	tickArrayAccountMinLen = discriminatorLen + 4 + tickArraySize*tickLen
)

// poolAccount is the decoded slice of a CLMM pool account the gateway
// reads: tick geometry and the global fee-growth accumulators.
type poolAccount struct {
	TickSpacing      uint16
	FeeRate          uint16
	Liquidity        *uint256.Int
	TickCurrentIndex int32
	TokenMintA       string
	TokenMintB       string
	FeeGrowthGlobalA *uint256.Int
	FeeGrowthGlobalB *uint256.Int
}

func decodePoolAccount(data []byte) (*poolAccount, error) {
	if len(data) < poolAccountMinLen {
		return nil, fmt.Errorf("pool account: %d bytes, want at least %d", len(data), poolAccountMinLen)
	}

	pool := &poolAccount{}
	offset := discriminatorLen

	offset += 32 // whirlpoolsConfig
	offset += 1  // bump
	pool.TickSpacing = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2
	offset += 2 // feeTierIndexSeed
	pool.FeeRate = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2
	offset += 2 // protocolFeeRate

	pool.Liquidity = u128At(data, offset)
	offset += 16
	offset += 16 // sqrtPrice
	pool.TickCurrentIndex = int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	offset += 16 // protocolFeeOwedA + protocolFeeOwedB

	pool.TokenMintA = base58.Encode(data[offset : offset+32])
	offset += 32
	offset += 32 // tokenVaultA
	pool.FeeGrowthGlobalA = u128At(data, offset)
	offset += 16

	pool.TokenMintB = base58.Encode(data[offset : offset+32])
	offset += 32
	offset += 32 // tokenVaultB
	pool.FeeGrowthGlobalB = u128At(data, offset)

	return pool, nil
}

// positionAccount is a decoded CLMM position account.
type positionAccount struct {
	Whirlpool            string
	PositionMint         string
	Liquidity            *uint256.Int
	TickLowerIndex       int32
	TickUpperIndex       int32
	FeeGrowthCheckpointA *uint256.Int
	FeeOwedA             uint64
	FeeGrowthCheckpointB *uint256.Int
	FeeOwedB             uint64
}

func decodePositionAccount(data []byte) (*positionAccount, error) {
	if len(data) < positionAccountMinLen {
		return nil, fmt.Errorf("position account: %d bytes, want at least %d", len(data), positionAccountMinLen)
	}

	pos := &positionAccount{}
	offset := discriminatorLen

	pos.Whirlpool = base58.Encode(data[offset : offset+32])
	offset += 32
	pos.PositionMint = base58.Encode(data[offset : offset+32])
	offset += 32
	pos.Liquidity = u128At(data, offset)
	offset += 16
	pos.TickLowerIndex = int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	pos.TickUpperIndex = int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	pos.FeeGrowthCheckpointA = u128At(data, offset)
	offset += 16
	pos.FeeOwedA = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	pos.FeeGrowthCheckpointB = u128At(data, offset)
	offset += 16
	pos.FeeOwedB = binary.LittleEndian.Uint64(data[offset : offset+8])

	return pos, nil
}

// tickOutsideAt extracts the two feeGrowthOutside accumulators for one tick
// from a tick-array account. Uninitialized ticks decode as zero, which is
// exactly their accumulator value.
func tickOutsideAt(data []byte, startTick, tick int32, tickSpacing uint16) (*uint256.Int, *uint256.Int, error) {
	if len(data) < tickArrayAccountMinLen {
		return nil, nil, fmt.Errorf("tick array account: %d bytes, want at least %d", len(data), tickArrayAccountMinLen)
	}
	if tickSpacing == 0 {
		return nil, nil, fmt.Errorf("tick spacing is zero")
	}

	span := tick - startTick
	if span < 0 || span%int32(tickSpacing) != 0 {
		return nil, nil, fmt.Errorf("tick %d not on spacing %d from start %d", tick, tickSpacing, startTick)
	}
	index := span / int32(tickSpacing)
	if index >= tickArraySize {
		return nil, nil, fmt.Errorf("tick %d outside array starting at %d", tick, startTick)
	}

	offset := discriminatorLen + 4 + int(index)*tickLen
	offset += 1  // initialized
	offset += 32 // liquidityNet + liquidityGross
	outside0 := u128At(data, offset)
	outside1 := u128At(data, offset+16)
	return outside0, outside1, nil
}

// tickArrayStart returns the start index of the tick array containing tick.
func tickArrayStart(tick int32, tickSpacing uint16) int32 {
	span := int32(tickSpacing) * tickArraySize
	start := tick / span
	if tick < 0 && tick%span != 0 {
		start--
	}
	return start * span
}

// u128At reads a little-endian u128 into a uint256.
func u128At(data []byte, offset int) *uint256.Int {
	lo := binary.LittleEndian.Uint64(data[offset : offset+8])
	hi := binary.LittleEndian.Uint64(data[offset+8 : offset+16])
	return &uint256.Int{lo, hi, 0, 0}
}
