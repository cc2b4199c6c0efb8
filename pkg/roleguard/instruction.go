package roleguard

import (
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// ErrMalformedRoles indicates a set of declared roles can't form a creation
// instruction. It's fatal to the construction call and the input must be
// fixed before retrying.
var ErrMalformedRoles = errors.New("malformed roles")

// MalformedRolesError describes why Construct rejected a set of roles
type MalformedRolesError struct {
	Instruction string
	Reason      string
}

func (e *MalformedRolesError) Error() string {
	if len(e.Instruction) == 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedRoles, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedRoles, e.Instruction, e.Reason)
}

// Is allows errors.Is(err, ErrMalformedRoles)
func (e *MalformedRolesError) Is(target error) bool {
	return target == ErrMalformedRoles
}

// AccountDescriptor describes one account referenced by a creation instruction
type AccountDescriptor struct {
	// Name is a label used in diagnostics, eg. "rent_payer"
	Name string

	// Address is optional and only used for display
	Address []byte

	Roles RoleSet

	// IsSigner is whether the account co-signed the enclosing transaction
	IsSigner bool

	// IsProgramDerived is whether the address is computed from seeds rather
	// than being an independently held key
	IsProgramDerived bool

	// Seeds is only set for program derived accounts
	Seeds []SeedComponent
}

// Label returns the best available human readable identifier for the account
func (a *AccountDescriptor) Label() string {
	if a == nil {
		return ""
	}
	if len(a.Name) > 0 {
		return a.Name
	}
	if len(a.Address) > 0 {
		return base58.Encode(a.Address)
	}
	return a.Roles.String()
}

func (a *AccountDescriptor) clone() *AccountDescriptor {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.Address = copyBytes(a.Address)
	if a.Seeds != nil {
		cloned.Seeds = make([]SeedComponent, len(a.Seeds))
		for i, seed := range a.Seeds {
			cloned.Seeds[i] = seed.clone()
		}
	}
	return &cloned
}

// Roles is the wholesale declaration a CreationInstruction is built from
type Roles struct {
	Name                      string
	Accounts                  []AccountDescriptor
	AllowReentryIfPreexisting bool
}

// CreationInstruction is a validated, immutable set of roles for a single
// resource creation. Use Construct to build one.
type CreationInstruction struct {
	name                      string
	accounts                  []*AccountDescriptor
	target                    *AccountDescriptor
	payer                     *AccountDescriptor
	authority                 *AccountDescriptor
	allowReentryIfPreexisting bool
}

// Construct assembles a CreationInstruction from a declared set of roles. It
// fails with ErrMalformedRoles when there isn't exactly one payer and one
// target, when more than one account claims authority, or when a program
// derived target has no seeds.
func Construct(roles *Roles) (*CreationInstruction, error) {
	if roles == nil {
		return nil, &MalformedRolesError{Reason: "no roles declared"}
	}

	malformed := func(format string, args ...interface{}) error {
		return &MalformedRolesError{
			Instruction: roles.Name,
			Reason:      fmt.Sprintf(format, args...),
		}
	}

	ix := &CreationInstruction{
		name:                      roles.Name,
		allowReentryIfPreexisting: roles.AllowReentryIfPreexisting,
	}

	var payers, targets, authorities []string
	for i := range roles.Accounts {
		account := roles.Accounts[i].clone()
		ix.accounts = append(ix.accounts, account)

		if account.Roles.Has(RolePayer) {
			payers = append(payers, account.Label())
			ix.payer = account
		}
		if account.Roles.Has(RoleTarget) {
			targets = append(targets, account.Label())
			ix.target = account
		}
		if account.Roles.Has(RoleAuthority) {
			authorities = append(authorities, account.Label())
			ix.authority = account
		}
	}

	switch len(payers) {
	case 0:
		return nil, malformed("no account carries the payer role")
	case 1:
	default:
		return nil, malformed("multiple accounts carry the payer role: %v", payers)
	}

	switch len(targets) {
	case 0:
		return nil, malformed("no account carries the target role")
	case 1:
	default:
		return nil, malformed("multiple accounts carry the target role: %v", targets)
	}

	if len(authorities) > 1 {
		return nil, malformed("multiple accounts carry the authority role: %v", authorities)
	}

	if ix.target.IsProgramDerived && len(ix.target.Seeds) == 0 {
		return nil, malformed("program derived target %s has no seed components", ix.target.Label())
	}

	return ix, nil
}

func (ix *CreationInstruction) Name() string {
	return ix.name
}

func (ix *CreationInstruction) Target() *AccountDescriptor {
	return ix.target.clone()
}

func (ix *CreationInstruction) Payer() *AccountDescriptor {
	return ix.payer.clone()
}

// Authority returns nil when the instruction doesn't declare an authority
func (ix *CreationInstruction) Authority() *AccountDescriptor {
	return ix.authority.clone()
}

func (ix *CreationInstruction) AllowReentryIfPreexisting() bool {
	return ix.allowReentryIfPreexisting
}

// Accounts returns every declared account in declaration order
func (ix *CreationInstruction) Accounts() []*AccountDescriptor {
	accounts := make([]*AccountDescriptor, len(ix.accounts))
	for i, account := range ix.accounts {
		accounts[i] = account.clone()
	}
	return accounts
}
