package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// pdaMarker is appended when hashing program-derived address candidates.
const pdaMarker = "ProgramDerivedAddress"

// FindProgramAddress derives the program address for the seeds, walking
// bump seeds down from 255 until the candidate falls off the ed25519 curve.
func FindProgramAddress(seeds [][]byte, programID []byte) (string, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(programID)
		h.Write([]byte(pdaMarker))
		candidate := h.Sum(nil)

		if !isOnCurve(candidate) {
			return base58.Encode(candidate), uint8(bump), nil
		}
	}
	return "", 0, errors.New("no viable program address bump")
}

// isOnCurve reports whether the bytes decode to a valid ed25519 point.
// Program addresses must not, so they can never sign.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

func encodePubkey(raw []byte) string {
	return base58.Encode(raw)
}

func decodePubkey(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("decode pubkey %q: %w", address, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("pubkey %q: %d bytes, want 32", address, len(raw))
	}
	return raw, nil
}
