package model

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ToRawAmount converts a human-readable token amount into raw integer
// units for the given decimals. Conversion goes through the shortest
// decimal representation of the value, never through float multiplication,
// so 0.001 at 18 decimals is exactly 10^15 with no binary artifacts.
func ToRawAmount(amount float64, decimals uint8) (*big.Int, error) {
	if amount < 0 {
		return nil, fmt.Errorf("negative amount: %v", amount)
	}
	return ParseDecimalAmount(strconv.FormatFloat(amount, 'f', -1, 64), decimals)
}

// ParseDecimalAmount converts a plain decimal string ("1234.5", "0.001")
// into raw integer units. Fractional digits beyond the token's decimals
// are truncated.
func ParseDecimalAmount(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.ContainsAny(s, "eE") {
		return nil, fmt.Errorf("scientific notation not supported: %q", s)
	}

	whole, frac := s, ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole, frac = s[:idx], s[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	raw, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount: %q", s)
	}
	return raw, nil
}

// FormatRawAmount renders raw integer units as a plain decimal string,
// trimming trailing fractional zeros.
func FormatRawAmount(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	digits := raw.String()
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	if len(digits) <= int(decimals) {
		digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
	}
	split := len(digits) - int(decimals)
	whole, frac := digits[:split], digits[split:]
	frac = strings.TrimRight(frac, "0")

	out := whole
	if frac != "" {
		out = whole + "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
