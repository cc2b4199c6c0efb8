package main

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/roleguard/pkg/manifest"
	"github.com/code-payments/roleguard/pkg/roleguard"
	"github.com/code-payments/roleguard/pkg/solana"
)

func newDeriveCommand(env *environment) *cobra.Command {
	var program string
	var seeds []string
	var unobservable bool

	cmd := &cobra.Command{
		Use:   "derive --program <address> --seed <kind>:<value>...",
		Short: "Find a program derived address and bump, and report whether a third party can predict it",
		Example: "  roleguard derive --program Fvat4mBGBnCbz7eGpTYUUJq2gQ4bwevt5AYhAVibmjC2 \\\n" +
			"    --seed static:stake --seed pubkey:<user> --seed nonce:847291 --unobservable",
		Args: cobra.NoArgs,
		RunE: env.run(func(cmd *cobra.Command, _ []string) error {
			programKey, err := base58.Decode(program)
			if err != nil || len(programKey) != 32 {
				return &exitError{code: exitMalformed, err: errors.Errorf("invalid program address %q", program)}
			}

			components := make([]roleguard.SeedComponent, 0, len(seeds))
			for _, seed := range seeds {
				kind, value, ok := strings.Cut(seed, ":")
				if !ok {
					return &exitError{code: exitMalformed, err: errors.Errorf("seed %q isn't in kind:value form", seed)}
				}

				component, err := manifest.ParseSeed(kind, value, unobservable && kind == "nonce")
				if err != nil {
					return &exitError{code: exitMalformed, err: err}
				}
				if component.Value == nil && component.Kind != roleguard.SeedStaticLiteral {
					return &exitError{code: exitMalformed, err: errors.Errorf("seed %q needs a value", seed)}
				}
				components = append(components, component)
			}

			rawSeeds := make([][]byte, len(components))
			for i, component := range components {
				rawSeeds[i] = component.Value
			}

			address, bump, err := solana.FindProgramAddressAndBump(programKey, rawSeeds...)
			if err != nil {
				return &exitError{code: exitMalformed, err: err}
			}

			predictable := true
			for _, component := range components {
				if !component.PredictableByThirdParty() {
					predictable = false
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address: %s\n", base58.Encode(address))
			fmt.Fprintf(out, "bump: %d\n", bump)
			fmt.Fprintf(out, "predictable: %t\n", predictable)
			for _, component := range components {
				fmt.Fprintf(out, "  %s\n", component)
			}

			env.log.WithField("address", base58.Encode(address)).Debug("derived program address")
			return nil
		}),
	}

	cmd.Flags().StringVar(&program, "program", "", "base58 address of the deriving program")
	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "seed component as kind:value, where kind is static, pubkey, nonce or constant")
	cmd.Flags().BoolVar(&unobservable, "unobservable", false, "treat nonce seeds as unobservable before submission")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}
