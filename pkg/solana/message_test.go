package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Taken from: https://github.com/solana-labs/solana/blob/14339dec0a960e8161d1165b6a8e5cfb73e78f23/sdk/src/transaction.rs#L523,
// with a keypair whose public key matches its seed.
const rustGenerated = "ATMfBMZ8phHEheLph8K9TJhRKhnE4qNZvWiXdUdJRmlTCRsQjWmW2CkQJeRHBCcsqFm2gynjL40M9mTe0Dxp4QIBAAEDfEya6wnC7f3Cv53qnOEywwIJ928rIdqAlfXYI1adXroBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

func TestMessage_CrossImpl(t *testing.T) {
	keypair := ed25519.NewKeyFromSeed([]byte{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75})
	programID := ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4,
		2, 2, 2}
	to := ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}

	tx := NewTransaction(
		keypair.Public().(ed25519.PublicKey),
		NewInstruction(
			programID,
			[]byte{1, 2, 3},
			NewAccountMeta(keypair.Public().(ed25519.PublicKey), true),
			NewAccountMeta(to, false),
		),
	)

	generated, err := base64.StdEncoding.DecodeString(rustGenerated)
	require.NoError(t, err)

	// Signatures aside, the serialized message is identical
	assert.Equal(t, generated[1+ed25519.SignatureSize:], tx.Message.Marshal())

	var decoded Transaction
	require.NoError(t, decoded.Unmarshal(generated))
	require.Len(t, decoded.Signatures, 1)
	assert.Equal(t, tx.Message, decoded.Message)
	assert.Equal(t, generated, decoded.Marshal())
}

func TestMessage_Privileges(t *testing.T) {
	payer, program, to, readonly := newKey(t), newKey(t), newKey(t), newKey(t)

	tx := NewTransaction(
		payer,
		NewInstruction(
			program,
			nil,
			NewAccountMeta(payer, true),
			NewReadonlyAccountMeta(readonly, false),
			NewAccountMeta(to, false),
		),
	)

	m := tx.Message
	require.Len(t, m.Accounts, 4)
	assert.EqualValues(t, payer, m.Accounts[0])
	assert.EqualValues(t, to, m.Accounts[1])
	assert.EqualValues(t, readonly, m.Accounts[2])
	assert.EqualValues(t, program, m.Accounts[3])
	assert.Equal(t, Header{NumSignatures: 1, NumReadOnly: 2}, m.Header)

	assert.True(t, m.IsSigner(0))
	assert.False(t, m.IsSigner(1))
	assert.False(t, m.IsSigner(-1))

	assert.True(t, m.IsWritable(0))
	assert.True(t, m.IsWritable(1))
	assert.False(t, m.IsWritable(2))
	assert.False(t, m.IsWritable(3))
	assert.False(t, m.IsWritable(4))

	require.Len(t, m.Instructions, 1)
	assert.EqualValues(t, 3, m.Instructions[0].ProgramIndex)
	assert.Equal(t, []byte{0, 2, 1}, m.Instructions[0].Accounts)
}

func TestMessage_RepeatedAccounts(t *testing.T) {
	payer, program, target := newKey(t), newKey(t), newKey(t)

	tx := NewTransaction(
		payer,
		NewInstruction(program, nil, NewReadonlyAccountMeta(target, false)),
		NewInstruction(program, nil, NewAccountMeta(target, true), NewAccountMeta(payer, true)),
	)

	m := tx.Message
	require.Len(t, m.Accounts, 3)
	assert.Equal(t, Header{NumSignatures: 2, NumReadOnly: 1}, m.Header)
	assert.Len(t, tx.Signatures, 2)
	assert.True(t, m.IsSigner(1))
	assert.True(t, m.IsWritable(1))
	assert.Equal(t, []byte{1}, m.Instructions[0].Accounts)
	assert.Equal(t, []byte{1, 0}, m.Instructions[1].Accounts)
}

func TestMessage_InvalidIndexes(t *testing.T) {
	payer, program := newKey(t), newKey(t)

	tx := NewTransaction(payer, NewInstruction(program, nil, NewAccountMeta(payer, true)))
	tx.Message.Instructions[0].ProgramIndex = 2
	assert.Error(t, (&Transaction{}).Unmarshal(tx.Marshal()))

	tx = NewTransaction(payer, NewInstruction(program, nil, NewAccountMeta(payer, true)))
	tx.Message.Instructions[0].Accounts = []byte{2}
	assert.Error(t, (&Transaction{}).Unmarshal(tx.Marshal()))
}

func TestMessage_Truncated(t *testing.T) {
	payer, program := newKey(t), newKey(t)

	raw := NewTransaction(payer, NewInstruction(program, []byte{1, 2, 3}, NewAccountMeta(payer, true))).Marshal()
	for i := 0; i < len(raw); i++ {
		assert.Error(t, (&Transaction{}).Unmarshal(raw[:i]), "length %d", i)
	}
	assert.NoError(t, (&Transaction{}).Unmarshal(raw))
}

func TestMessage_Versioned(t *testing.T) {
	var m Message
	assert.Equal(t, ErrVersionedMessage, m.Unmarshal([]byte{0x80, 1, 0, 1}))
	assert.Error(t, m.Unmarshal(nil))
}

func TestDecodeTransaction(t *testing.T) {
	payer, program := newKey(t), newKey(t)

	tx := NewTransaction(payer, NewInstruction(program, []byte{1, 2, 3}, NewAccountMeta(payer, true)))
	raw := tx.Marshal()

	for _, encoded := range []string{
		base64.StdEncoding.EncodeToString(raw),
		base58.Encode(raw),
	} {
		decoded, err := DecodeTransaction(encoded)
		require.NoError(t, err)
		assert.Equal(t, tx.Message, decoded.Message)
	}

	_, err := DecodeTransaction("not a transaction!")
	assert.Error(t, err)

	_, err = DecodeTransaction(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0xff}, MaxTransactionSize+1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transaction")

	_, err = DecodeTransaction(base64.StdEncoding.EncodeToString(append(raw, 0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")

	var versioned Transaction
	err = versioned.Unmarshal(append([]byte{1}, append(make([]byte, ed25519.SignatureSize), 0x80)...))
	assert.True(t, errors.Is(err, ErrVersionedMessage))
}

func newKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}
