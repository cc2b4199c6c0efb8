package main

import (
	"github.com/spf13/cobra"

	"github.com/code-payments/roleguard/pkg/manifest"
	"github.com/code-payments/roleguard/pkg/roleguard"
)

func newCheckCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "check <manifest.yaml>...",
		Short: "Validate the creation instructions declared in role manifests",
		Args:  cobra.MinimumNArgs(1),
		RunE: env.run(func(cmd *cobra.Command, args []string) error {
			var declared []*roleguard.Roles
			for _, path := range args {
				m, err := manifest.LoadFile(path)
				if err != nil {
					return &exitError{code: exitMalformed, err: err}
				}

				roles, err := m.Roles()
				if err != nil {
					return &exitError{code: exitMalformed, err: err}
				}

				env.log.WithField("manifest", path).Debugf("loaded %d instructions", len(roles))
				declared = append(declared, roles...)
			}

			return env.evaluate(cmd.Context(), cmd.OutOrStdout(), declared)
		}),
	}
}
