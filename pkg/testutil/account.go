package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/roleguard/pkg/solana"
)

// NewRandomKey returns the public half of a freshly generated keypair, which is
// always on the ed25519 curve
func NewRandomKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	return pub
}

// NewRandomProgramAddress derives an off curve address from a random program
// and the provided seeds
func NewRandomProgramAddress(t *testing.T, seeds ...[]byte) (address, program ed25519.PublicKey, bump uint8) {
	program = NewRandomKey(t)

	address, bump, err := solana.FindProgramAddressAndBump(program, seeds...)
	require.NoError(t, err)
	require.False(t, solana.IsOnCurve(address))

	return address, program, bump
}
