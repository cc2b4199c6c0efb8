package main

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/roleguard/pkg/manifest"
	"github.com/code-payments/roleguard/pkg/roleguard/extract"
	"github.com/code-payments/roleguard/pkg/solana"
)

func newTxCommand(env *environment) *cobra.Command {
	var hintsFile string

	cmd := &cobra.Command{
		Use:   "tx <transaction>",
		Short: "Validate the system program account creations in a serialized transaction",
		Long: "Validate the system program account creations in a base58 or base64 encoded legacy transaction. " +
			"Pass - to read the transaction from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: env.run(func(cmd *cobra.Command, args []string) error {
			encoded := args[0]
			if encoded == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.Wrap(err, "error reading transaction")
				}
				encoded = string(raw)
			}

			tx, err := solana.DecodeTransaction(strings.TrimSpace(encoded))
			if err != nil {
				return &exitError{code: exitMalformed, err: err}
			}

			var hints extract.SeedHints
			if len(hintsFile) > 0 {
				hints, err = manifest.LoadHintsFile(hintsFile)
				if err != nil {
					return &exitError{code: exitMalformed, err: err}
				}
			}

			declared, err := extract.FromTransaction(*tx, hints)
			if err != nil {
				return &exitError{code: exitMalformed, err: err}
			}

			env.log.WithField("instructions", len(tx.Message.Instructions)).Debugf("found %d account creations", len(declared))
			return env.evaluate(cmd.Context(), cmd.OutOrStdout(), declared)
		}),
	}

	cmd.Flags().StringVar(&hintsFile, "hints", "", "YAML file describing how program derived addresses in the transaction were derived")
	return cmd
}
