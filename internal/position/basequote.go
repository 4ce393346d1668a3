package position

import (
	"strings"

	"clmmgate/internal/model"
)

// ResolveBaseQuote canonicalizes a token pair. The token whose symbol
// matches the chain's wrapped-native-asset symbol becomes base; otherwise
// the token with the lexicographically smaller case-insensitive address
// does. The assignment depends only on the unordered pair, never on
// argument order.
func ResolveBaseQuote(token0, token1 model.TokenRef, wrappedNativeSymbol string) (base, quote model.TokenRef) {
	native0 := strings.EqualFold(token0.Symbol, wrappedNativeSymbol)
	native1 := strings.EqualFold(token1.Symbol, wrappedNativeSymbol)

	switch {
	case native0 && !native1:
		return token0, token1
	case native1 && !native0:
		return token1, token0
	}

	if strings.ToLower(token0.Address) <= strings.ToLower(token1.Address) {
		return token0, token1
	}
	return token1, token0
}
