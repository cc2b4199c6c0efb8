// Package extract turns on-chain instructions into role declarations the rule
// engine can validate.
package extract

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/roleguard/pkg/roleguard"
	"github.com/code-payments/roleguard/pkg/solana"
	"github.com/code-payments/roleguard/pkg/solana/system"
)

var (
	ErrInvalidHint  = errors.New("invalid seed hint")
	ErrSeedMismatch = errors.New("seeds don't derive the account address")
)

const (
	funderAccountName  = "funder"
	targetAccountName  = "new_account"
	baseAccountName    = "base"
	createAccountLabel = "create_account"
	withSeedLabel      = "create_account_with_seed"
)

// SeedHint tells the extractor how a program derived address was computed.
// Transactions only carry the resulting address, so the caller has to supply
// the derivation.
type SeedHint struct {
	Program ed25519.PublicKey
	Seeds   []roleguard.SeedComponent
	Bump    uint8
}

// Address re-derives the program address described by the hint
func (h SeedHint) Address() (ed25519.PublicKey, error) {
	if len(h.Program) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrInvalidHint, "program key has length %d", len(h.Program))
	}
	if len(h.Seeds) == 0 {
		return nil, errors.Wrap(ErrInvalidHint, "no seed components")
	}

	seeds := make([][]byte, 0, len(h.Seeds)+1)
	for _, seed := range h.Seeds {
		seeds = append(seeds, seed.Value)
	}
	seeds = append(seeds, []byte{h.Bump})

	address, err := solana.CreateProgramAddress(h.Program, seeds...)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidHint, err.Error())
	}
	return address, nil
}

// SeedHints maps base58 encoded account addresses to their derivation
type SeedHints map[string]SeedHint

func (h SeedHints) lookup(address ed25519.PublicKey) (SeedHint, bool) {
	if h == nil {
		return SeedHint{}, false
	}
	hint, ok := h[base58.Encode(address)]
	return hint, ok
}

// FromTransaction returns a role declaration for every system program account
// creation in the transaction, in instruction order. Other instructions are
// ignored.
//
// Addresses that are off the ed25519 curve and have no hint are declared as
// program derived without seeds, which roleguard.Construct rejects. The
// extractor won't guess at a derivation it can't see.
func FromTransaction(tx solana.Transaction, hints SeedHints) ([]*roleguard.Roles, error) {
	m := tx.Message

	var declared []*roleguard.Roles
	for i := range m.Instructions {
		if !system.IsCreateAccount(m, i) {
			continue
		}

		decompiled, err := decompile(m, i)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decompile instruction %d", i)
		}

		roles, err := fromCreateAccount(m, i, decompiled, hints)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %d", i)
		}
		declared = append(declared, roles)
	}
	return declared, nil
}

func decompile(m solana.Message, index int) (*system.DecompiledCreateAccount, error) {
	decompiled, err := system.DecompileCreateAccount(m, index)
	if err != solana.ErrIncorrectInstruction {
		return decompiled, err
	}
	return system.DecompileCreateAccountWithSeed(m, index)
}

func fromCreateAccount(m solana.Message, index int, decompiled *system.DecompiledCreateAccount, hints SeedHints) (*roleguard.Roles, error) {
	label := createAccountLabel
	if decompiled.WithSeed {
		label = withSeedLabel
	}

	funder := roleguard.AccountDescriptor{
		Name:     funderAccountName,
		Address:  decompiled.Funder,
		Roles:    roleguard.NewRoleSet(roleguard.RolePayer),
		IsSigner: m.IsSigner(decompiled.FunderIndex),
	}
	if err := describeDerivation(&funder, hints); err != nil {
		return nil, errors.Wrap(err, "funder")
	}

	target := roleguard.AccountDescriptor{
		Name:     targetAccountName,
		Address:  decompiled.Address,
		Roles:    roleguard.NewRoleSet(roleguard.RoleTarget),
		IsSigner: m.IsSigner(decompiled.AddressIndex),
	}
	if decompiled.WithSeed {
		if err := describeSeedDerivation(&target, decompiled); err != nil {
			return nil, errors.Wrap(err, "new account")
		}
	} else if err := describeDerivation(&target, hints); err != nil {
		return nil, errors.Wrap(err, "new account")
	}

	roles := &roleguard.Roles{
		Name: fmt.Sprintf("%s[%d]", label, index),
	}

	if bytes.Equal(decompiled.Funder, decompiled.Address) {
		funder.Roles = funder.Roles.With(roleguard.RoleTarget)
		funder.Seeds = target.Seeds
		funder.IsProgramDerived = funder.IsProgramDerived || target.IsProgramDerived
		roles.Accounts = append(roles.Accounts, funder)
	} else {
		roles.Accounts = append(roles.Accounts, funder, target)
	}

	if decompiled.WithSeed && !bytes.Equal(decompiled.Base, decompiled.Funder) {
		roles.Accounts = append(roles.Accounts, roleguard.AccountDescriptor{
			Name:     baseAccountName,
			Address:  decompiled.Base,
			Roles:    roleguard.NewRoleSet(roleguard.RolePlainSigner),
			IsSigner: m.IsSigner(decompiled.BaseIndex),
		})
	}

	// The system program refuses to create an account that already holds
	// lamports, so there's never a reentry path.
	roles.AllowReentryIfPreexisting = false

	return roles, nil
}

func describeDerivation(account *roleguard.AccountDescriptor, hints SeedHints) error {
	hint, ok := hints.lookup(account.Address)
	if !ok {
		if !solana.IsOnCurve(account.Address) {
			markProgramDerived(account, nil)
		}
		return nil
	}

	derived, err := hint.Address()
	if err != nil {
		return err
	}
	if !bytes.Equal(derived, account.Address) {
		return errors.Wrapf(ErrSeedMismatch, "expected %s, derived %s", base58.Encode(account.Address), base58.Encode(derived))
	}

	markProgramDerived(account, hint.Seeds)
	return nil
}

// describeSeedDerivation treats a CreateAccountWithSeed address as derived
// from its base, seed string and owner, all of which are visible on chain.
func describeSeedDerivation(account *roleguard.AccountDescriptor, decompiled *system.DecompiledCreateAccount) error {
	derived, err := system.CreateWithSeedAddress(decompiled.Base, decompiled.Seed, decompiled.Owner)
	if err != nil {
		return err
	}
	if !bytes.Equal(derived, account.Address) {
		return errors.Wrapf(ErrSeedMismatch, "expected %s, derived %s", base58.Encode(account.Address), base58.Encode(derived))
	}

	markProgramDerived(account, []roleguard.SeedComponent{
		roleguard.CallerPublicKey(decompiled.Base),
		roleguard.StaticLiteral(decompiled.Seed),
		roleguard.ProgramConstant(decompiled.Owner),
	})
	return nil
}

func markProgramDerived(account *roleguard.AccountDescriptor, seeds []roleguard.SeedComponent) {
	account.IsProgramDerived = true
	account.Roles = account.Roles.With(roleguard.RoleProgramDerived)
	account.Seeds = seeds
}
