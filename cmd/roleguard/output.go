package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/roleguard/pkg/guard"
	"github.com/code-payments/roleguard/pkg/roleguard"
)

// evaluate checks every declaration, writes the diagnostics and maps the
// outcome to an exit code. Malformed declarations take precedence over
// rejected ones.
func (e *environment) evaluate(ctx context.Context, out io.Writer, declared []*roleguard.Roles) error {
	results, err := e.guard.CheckAll(ctx, declared)
	if err != nil {
		return err
	}

	var malformed, rejected int
	diagnostics := make([]*roleguard.Diagnostic, 0, len(results))
	for _, result := range results {
		switch {
		case result.Err == nil:
		case errors.Is(result.Err, roleguard.ErrMalformedRoles):
			malformed++
		case errors.Is(result.Err, guard.ErrRejected):
			rejected++
		default:
			return errors.Wrapf(result.Err, "error checking %s", result.Roles.Name)
		}

		diagnostic := result.Diagnostic()
		if diagnostic == nil {
			var name string
			if result.Roles != nil {
				name = result.Roles.Name
			}
			diagnostic = roleguard.Malformed(name, result.Err)
		}
		diagnostics = append(diagnostics, diagnostic)
	}

	if err := e.write(out, diagnostics); err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"instructions": len(results),
		"malformed":    malformed,
		"rejected":     rejected,
	}).Info("checked instructions")

	switch {
	case malformed > 0:
		return &exitError{code: exitMalformed}
	case rejected > 0:
		return &exitError{code: exitFailed}
	default:
		return nil
	}
}

func (e *environment) write(out io.Writer, diagnostics []*roleguard.Diagnostic) error {
	if e.settings.GetBool(jsonConfigKey) {
		return roleguard.WriteJSON(out, diagnostics)
	}

	colorize := e.colorize(out)
	for _, diagnostic := range diagnostics {
		if err := roleguard.WriteText(out, diagnostic, colorize); err != nil {
			return err
		}
	}
	return nil
}
