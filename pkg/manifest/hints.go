package manifest

import (
	"io"
	"os"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/code-payments/roleguard/pkg/roleguard"
	"github.com/code-payments/roleguard/pkg/roleguard/extract"
)

// HintFile lists the derivations of program addresses that appear in a
// transaction, which the transaction itself doesn't carry
type HintFile struct {
	Hints []Hint `yaml:"hints" validate:"required,min=1,unique=Address,dive"`
}

type Hint struct {
	Address string `yaml:"address" validate:"required,base58key"`
	Program string `yaml:"program" validate:"required,base58key"`
	Bump    uint8  `yaml:"bump"`
	Seeds   []Seed `yaml:"seeds" validate:"required,min=1,dive"`
}

// LoadHints decodes, validates and converts a hint file
func LoadHints(r io.Reader) (extract.SeedHints, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var f HintFile
	if err := decoder.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, errors.Wrap(ErrInvalidManifest, "empty document")
		}
		return nil, errors.Wrap(ErrInvalidManifest, err.Error())
	}

	v, err := newValidator()
	if err != nil {
		return nil, errors.Wrap(err, "error creating validator")
	}
	if err := v.Struct(&f); err != nil {
		return nil, errors.Wrap(ErrInvalidManifest, err.Error())
	}

	hints := make(extract.SeedHints, len(f.Hints))
	for _, hint := range f.Hints {
		program, err := base58.Decode(hint.Program)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidManifest, "invalid program address")
		}

		seedHint := extract.SeedHint{
			Program: program,
			Bump:    hint.Bump,
		}
		for i, seed := range hint.Seeds {
			component, err := seed.component()
			if err != nil {
				return nil, errors.Wrapf(err, "%s: seed %d", hint.Address, i)
			}
			if component.Value == nil && component.Kind != roleguard.SeedStaticLiteral && component.Kind != roleguard.SeedProgramConstant {
				return nil, errors.Wrapf(ErrInvalidManifest, "%s: seed %d needs a value to derive the address", hint.Address, i)
			}
			seedHint.Seeds = append(seedHint.Seeds, component)
		}

		hints[hint.Address] = seedHint
	}
	return hints, nil
}

func LoadHintsFile(path string) (extract.SeedHints, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", path)
	}
	defer f.Close()

	hints, err := LoadHints(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return hints, nil
}
