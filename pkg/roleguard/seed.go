package roleguard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// SeedKind describes where a seed in a program address derivation comes from
type SeedKind uint8

const (
	SeedStaticLiteral SeedKind = iota
	SeedCallerPublicKey
	SeedCallerSuppliedNonce
	SeedProgramConstant
)

var ErrUnknownSeedKind = errors.New("unknown seed kind")

func (k SeedKind) String() string {
	switch k {
	case SeedStaticLiteral:
		return "static"
	case SeedCallerPublicKey:
		return "caller_pubkey"
	case SeedCallerSuppliedNonce:
		return "nonce"
	case SeedProgramConstant:
		return "program_constant"
	default:
		return "unknown"
	}
}

// ParseSeedKind parses the names produced by SeedKind.String
func ParseSeedKind(value string) (SeedKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "static":
		return SeedStaticLiteral, nil
	case "caller_pubkey", "pubkey":
		return SeedCallerPublicKey, nil
	case "nonce":
		return SeedCallerSuppliedNonce, nil
	case "program_constant", "constant":
		return SeedProgramConstant, nil
	default:
		return 0, errors.Wrapf(ErrUnknownSeedKind, "%q", value)
	}
}

// SeedComponent is one ingredient of a program address derivation.
//
// Value holds the raw seed bytes when they're known. It isn't consulted by the
// rule engine, but lets hosts re-derive and cross check addresses.
type SeedComponent struct {
	Kind  SeedKind
	Value []byte

	// Unobservable is only meaningful for caller supplied nonces. It declares
	// that the nonce value can't be observed by anyone else before the creation
	// transaction is submitted.
	Unobservable bool
}

func StaticLiteral(value string) SeedComponent {
	return SeedComponent{
		Kind:  SeedStaticLiteral,
		Value: []byte(value),
	}
}

func CallerPublicKey(key []byte) SeedComponent {
	return SeedComponent{
		Kind:  SeedCallerPublicKey,
		Value: copyBytes(key),
	}
}

// CallerSuppliedNonce encodes the nonce as 8 little endian bytes, which is how
// on chain programs typically feed a u64 into their seeds.
func CallerSuppliedNonce(nonce uint64, unobservable bool) SeedComponent {
	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, nonce)
	return SeedComponent{
		Kind:         SeedCallerSuppliedNonce,
		Value:        value,
		Unobservable: unobservable,
	}
}

func ProgramConstant(value []byte) SeedComponent {
	return SeedComponent{
		Kind:  SeedProgramConstant,
		Value: copyBytes(value),
	}
}

// PredictableByThirdParty reports whether someone other than the caller can
// compute this seed ahead of the creation transaction.
func (s SeedComponent) PredictableByThirdParty() bool {
	return !(s.Kind == SeedCallerSuppliedNonce && s.Unobservable)
}

func (s SeedComponent) Equal(other SeedComponent) bool {
	return s.Kind == other.Kind &&
		s.Unobservable == other.Unobservable &&
		bytes.Equal(s.Value, other.Value)
}

func (s SeedComponent) String() string {
	switch s.Kind {
	case SeedStaticLiteral:
		return fmt.Sprintf("%s(%q)", s.Kind, string(s.Value))
	case SeedCallerPublicKey:
		return fmt.Sprintf("%s(%s)", s.Kind, base58.Encode(s.Value))
	case SeedCallerSuppliedNonce:
		if len(s.Value) == 8 {
			return fmt.Sprintf("%s(%d)", s.Kind, binary.LittleEndian.Uint64(s.Value))
		}
		return fmt.Sprintf("%s(%x)", s.Kind, s.Value)
	default:
		return fmt.Sprintf("%s(%x)", s.Kind, s.Value)
	}
}

func (s SeedComponent) clone() SeedComponent {
	s.Value = copyBytes(s.Value)
	return s
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
