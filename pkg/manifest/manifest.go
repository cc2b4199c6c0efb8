// Package manifest loads role declarations from YAML files, so creation
// instructions can be checked without the program that executes them.
package manifest

import (
	"bytes"
	"crypto/ed25519"
	"io"
	"os"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/code-payments/roleguard/pkg/pointer"
	"github.com/code-payments/roleguard/pkg/roleguard"
	"github.com/code-payments/roleguard/pkg/solana"
)

var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the on-disk description of a program's creation instructions
type Manifest struct {
	// Source is the file the manifest was loaded from, if any
	Source string `yaml:"-"`

	// Program is the optional base58 program address, used to verify account
	// addresses against their seeds
	Program string `yaml:"program" validate:"omitempty,base58key"`

	Instructions []Instruction `yaml:"instructions" validate:"required,min=1,unique=Name,dive"`
}

type Instruction struct {
	Name                      string    `yaml:"name" validate:"required"`
	AllowReentryIfPreexisting bool      `yaml:"allow_reentry_if_preexisting"`
	Accounts                  []Account `yaml:"accounts" validate:"required,min=1,unique=Name,dive"`
}

type Account struct {
	Name    string   `yaml:"name" validate:"required"`
	Address string   `yaml:"address" validate:"omitempty,base58key"`
	Roles   []string `yaml:"roles" validate:"required,min=1,dive,oneof=payer authority target signer pda"`

	// Signer overrides the signer capability implied by the signer role
	Signer *bool `yaml:"signer"`

	// Bump is only used when verifying Address against Seeds
	Bump *uint8 `yaml:"bump"`

	Seeds []Seed `yaml:"seeds" validate:"dive"`
}

type Seed struct {
	Kind         string `yaml:"kind" validate:"required,oneof=static caller_pubkey pubkey nonce program_constant constant"`
	Value        string `yaml:"value"`
	Unobservable bool   `yaml:"unobservable"`
}

// Load decodes and structurally validates a manifest. Unknown fields are
// rejected.
func Load(r io.Reader) (*Manifest, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var m Manifest
	if err := decoder.Decode(&m); err != nil {
		if err == io.EOF {
			return nil, errors.Wrap(ErrInvalidManifest, "empty document")
		}
		return nil, errors.Wrap(ErrInvalidManifest, err.Error())
	}

	v, err := newValidator()
	if err != nil {
		return nil, errors.Wrap(err, "error creating validator")
	}
	if err := v.Struct(&m); err != nil {
		return nil, errors.Wrap(ErrInvalidManifest, err.Error())
	}

	return &m, nil
}

func LoadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", path)
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	m.Source = path
	return m, nil
}

// Roles converts every instruction into the core role model, in manifest
// order.
//
// The pda role marks an account as program derived. The signer role marks it
// as a signer unless the account sets signer: false, and signer: true works
// without the role.
func (m *Manifest) Roles() ([]*roleguard.Roles, error) {
	var program ed25519.PublicKey
	if len(m.Program) > 0 {
		decoded, err := base58.Decode(m.Program)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidManifest, "invalid program address")
		}
		program = decoded
	}

	declared := make([]*roleguard.Roles, 0, len(m.Instructions))
	for _, instruction := range m.Instructions {
		roles := &roleguard.Roles{
			Name:                      instruction.Name,
			AllowReentryIfPreexisting: instruction.AllowReentryIfPreexisting,
		}

		for _, account := range instruction.Accounts {
			descriptor, err := account.descriptor(program)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", instruction.Name, account.Name)
			}
			roles.Accounts = append(roles.Accounts, *descriptor)
		}

		declared = append(declared, roles)
	}
	return declared, nil
}

func (a *Account) descriptor(program ed25519.PublicKey) (*roleguard.AccountDescriptor, error) {
	descriptor := &roleguard.AccountDescriptor{
		Name: a.Name,
	}

	for _, value := range a.Roles {
		role, err := roleguard.ParseAccountRole(value)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidManifest, err.Error())
		}
		descriptor.Roles = descriptor.Roles.With(role)
	}

	descriptor.IsProgramDerived = descriptor.Roles.Has(roleguard.RoleProgramDerived)
	descriptor.IsSigner = *pointer.BoolOrDefault(a.Signer, descriptor.Roles.Has(roleguard.RolePlainSigner))

	if len(a.Address) > 0 {
		decoded, err := base58.Decode(a.Address)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidManifest, "invalid account address")
		}
		descriptor.Address = decoded
	}

	if len(a.Seeds) > 0 && !descriptor.IsProgramDerived {
		return nil, errors.Wrap(ErrInvalidManifest, "seeds declared without the pda role")
	}
	for i, seed := range a.Seeds {
		component, err := seed.component()
		if err != nil {
			return nil, errors.Wrapf(err, "seed %d", i)
		}
		descriptor.Seeds = append(descriptor.Seeds, component)
	}

	if err := a.verifyAddress(program, descriptor); err != nil {
		return nil, err
	}

	return descriptor, nil
}

// verifyAddress checks a declared address against its seeds when there's
// enough information to derive it.
func (a *Account) verifyAddress(program ed25519.PublicKey, descriptor *roleguard.AccountDescriptor) error {
	if len(program) == 0 || len(descriptor.Address) == 0 || a.Bump == nil || len(descriptor.Seeds) == 0 {
		return nil
	}

	seeds := make([][]byte, 0, len(descriptor.Seeds)+1)
	for _, seed := range descriptor.Seeds {
		seeds = append(seeds, seed.Value)
	}
	seeds = append(seeds, []byte{*a.Bump})

	derived, err := solana.CreateProgramAddress(program, seeds...)
	if err != nil {
		return errors.Wrapf(ErrInvalidManifest, "cannot derive address: %s", err)
	}
	if !bytes.Equal(derived, descriptor.Address) {
		return errors.Wrapf(ErrInvalidManifest, "seeds derive %s, not %s", base58.Encode(derived), a.Address)
	}
	return nil
}

func (s *Seed) component() (roleguard.SeedComponent, error) {
	return ParseSeed(s.Kind, s.Value, s.Unobservable)
}

// ParseSeed builds a seed component from its textual form. Static and program
// constant values are used as raw bytes, caller keys are base58 and nonces are
// base 10. Empty caller key and nonce values describe a seed whose value isn't
// known yet.
func ParseSeed(kindName, value string, unobservable bool) (roleguard.SeedComponent, error) {
	kind, err := roleguard.ParseSeedKind(kindName)
	if err != nil {
		return roleguard.SeedComponent{}, errors.Wrap(ErrInvalidManifest, err.Error())
	}

	if unobservable && kind != roleguard.SeedCallerSuppliedNonce {
		return roleguard.SeedComponent{}, errors.Wrapf(ErrInvalidManifest, "%s seeds are always observable", kind)
	}

	switch kind {
	case roleguard.SeedStaticLiteral:
		return roleguard.StaticLiteral(value), nil
	case roleguard.SeedCallerPublicKey:
		if len(value) == 0 {
			return roleguard.SeedComponent{Kind: kind}, nil
		}
		decoded, err := base58.Decode(value)
		if err != nil || len(decoded) != ed25519.PublicKeySize {
			return roleguard.SeedComponent{}, errors.Wrapf(ErrInvalidManifest, "invalid caller public key %q", value)
		}
		return roleguard.CallerPublicKey(decoded), nil
	case roleguard.SeedCallerSuppliedNonce:
		if len(value) == 0 {
			return roleguard.SeedComponent{Kind: kind, Unobservable: unobservable}, nil
		}
		nonce, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return roleguard.SeedComponent{}, errors.Wrapf(ErrInvalidManifest, "invalid nonce %q", value)
		}
		return roleguard.CallerSuppliedNonce(nonce, unobservable), nil
	default:
		return roleguard.ProgramConstant([]byte(value)), nil
	}
}

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	err := v.RegisterValidation("base58key", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}

		decoded, err := base58.Decode(fl.Field().String())
		return err == nil && len(decoded) == ed25519.PublicKeySize
	})
	return v, err
}
