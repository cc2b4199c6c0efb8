package system

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/roleguard/pkg/solana"
)

// ProgramKey is the system program address, 11111111111111111111111111111111
var ProgramKey [32]byte

const (
	commandCreateAccount uint32 = iota
	// nolint:varcheck,deadcode,unused
	commandAssign
	// nolint:varcheck,deadcode,unused
	commandTransfer
	commandCreateAccountWithSeed
	// nolint:varcheck,deadcode,unused
	commandAdvanceNonceAccount
	// nolint:varcheck,deadcode,unused
	commandWithdrawNonceAccount
	// nolint:varcheck,deadcode,unused
	commandInitializeNonceAccount
	// nolint:varcheck,deadcode,unused
	commandAuthorizeNonceAccount
	commandAllocate
)

const (
	MaxSeedLength = 32

	createAccountDataSize = 4 + 2*8 + 32
)

var ErrSeedTooLong = errors.New("seed exceeds max length")

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount {
	//   lamports: u64,
	//   space: u64,
	//   owner: Pubkey,
	// }
	data := make([]byte, createAccountDataSize)
	binary.LittleEndian.PutUint32(data, commandCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[4+8:], size)
	copy(data[4+2*8:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// DecompiledCreateAccount is a CreateAccount or CreateAccountWithSeed
// instruction pulled out of a message. Index fields point into the message's
// account list so callers can look up signer and writable status.
type DecompiledCreateAccount struct {
	Funder      ed25519.PublicKey
	FunderIndex int

	Address      ed25519.PublicKey
	AddressIndex int

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey

	// Only set for CreateAccountWithSeed. BaseIndex is the funder's index when
	// the base account isn't passed separately.
	WithSeed  bool
	Base      ed25519.PublicKey
	BaseIndex int
	Seed      string
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, err := systemInstruction(m, index, commandCreateAccount)
	if err != nil {
		return nil, err
	}

	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != createAccountDataSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	v := &DecompiledCreateAccount{
		Funder:       m.Accounts[i.Accounts[0]],
		FunderIndex:  int(i.Accounts[0]),
		Address:      m.Accounts[i.Accounts[1]],
		AddressIndex: int(i.Accounts[1]),
	}
	v.Lamports = binary.LittleEndian.Uint64(i.Data[4:])
	v.Size = binary.LittleEndian.Uint64(i.Data[4+8:])
	v.Owner = make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(v.Owner, i.Data[4+2*8:])

	return v, nil
}

// CreateWithSeedAddress mirrors Pubkey::create_with_seed. Anyone who knows the
// base, seed and owner can compute the resulting address.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/pubkey.rs#L133
func CreateWithSeedAddress(base ed25519.PublicKey, seed string, owner ed25519.PublicKey) (ed25519.PublicKey, error) {
	if len(seed) > MaxSeedLength {
		return nil, ErrSeedTooLong
	}

	h := sha256.New()
	_, _ = h.Write(base)
	_, _ = h.Write([]byte(seed))
	_, _ = h.Write(owner)
	return h.Sum(nil), nil
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L74-L95
func CreateAccountWithSeed(funder, address, base ed25519.PublicKey, seed string, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Created account
	//   2. [SIGNER] (optional) Base account; only present when it isn't the funder
	//
	// CreateAccountWithSeed {
	//   base: Pubkey,
	//   seed: String,
	//   lamports: u64,
	//   space: u64,
	//   owner: Pubkey,
	// }
	data := make([]byte, 4+32+8+len(seed)+8+8+32)
	offset := 0
	binary.LittleEndian.PutUint32(data[offset:], commandCreateAccountWithSeed)
	offset += 4
	offset += copy(data[offset:], base)
	binary.LittleEndian.PutUint64(data[offset:], uint64(len(seed)))
	offset += 8
	offset += copy(data[offset:], seed)
	binary.LittleEndian.PutUint64(data[offset:], lamports)
	offset += 8
	binary.LittleEndian.PutUint64(data[offset:], size)
	offset += 8
	copy(data[offset:], owner)

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, false),
	}
	if !bytes.Equal(base, funder) {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(base, true))
	}

	return solana.NewInstruction(ProgramKey[:], data, accounts...)
}

func DecompileCreateAccountWithSeed(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, err := systemInstruction(m, index, commandCreateAccountWithSeed)
	if err != nil {
		return nil, err
	}

	if len(i.Accounts) < 2 || len(i.Accounts) > 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	const fixedSize = 4 + 32 + 8 + 8 + 8 + 32
	if len(i.Data) < fixedSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	offset := 4
	base := make(ed25519.PublicKey, ed25519.PublicKeySize)
	offset += copy(base, i.Data[offset:offset+32])

	seedLen := binary.LittleEndian.Uint64(i.Data[offset:])
	offset += 8
	if seedLen > MaxSeedLength || uint64(len(i.Data)) != fixedSize+seedLen {
		return nil, errors.Errorf("invalid seed length: %d", seedLen)
	}
	seed := string(i.Data[offset : offset+int(seedLen)])
	offset += int(seedLen)

	v := &DecompiledCreateAccount{
		Funder:       m.Accounts[i.Accounts[0]],
		FunderIndex:  int(i.Accounts[0]),
		Address:      m.Accounts[i.Accounts[1]],
		AddressIndex: int(i.Accounts[1]),
		WithSeed:     true,
		Base:         base,
		BaseIndex:    int(i.Accounts[0]),
		Seed:         seed,
	}
	if len(i.Accounts) == 3 {
		v.BaseIndex = int(i.Accounts[2])
	}
	v.Lamports = binary.LittleEndian.Uint64(i.Data[offset:])
	offset += 8
	v.Size = binary.LittleEndian.Uint64(i.Data[offset:])
	offset += 8
	v.Owner = make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(v.Owner, i.Data[offset:])

	return v, nil
}

// IsCreateAccount reports whether the instruction at index is a system program
// CreateAccount or CreateAccountWithSeed.
func IsCreateAccount(m solana.Message, index int) bool {
	if _, err := systemInstruction(m, index, commandCreateAccount); err == nil {
		return true
	}
	_, err := systemInstruction(m, index, commandCreateAccountWithSeed)
	return err == nil
}

func systemInstruction(m solana.Message, index int, command uint32) (*solana.CompiledInstruction, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], command)
	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey[:]) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, prefix[:]) {
		return nil, solana.ErrIncorrectInstruction
	}
	return &i, nil
}
