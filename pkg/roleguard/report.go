package roleguard

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusPass             Status = "pass"
	StatusPassWithWarnings Status = "pass with warnings"
	StatusFail             Status = "fail"

	// StatusMalformed is never produced by a verdict. Hosts use it for
	// declarations Construct rejected.
	StatusMalformed Status = "malformed"
)

func (v *Verdict) Status() Status {
	switch {
	case !v.Passed():
		return StatusFail
	case v.HasWarnings():
		return StatusPassWithWarnings
	default:
		return StatusPass
	}
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

var recommendations = map[string]string{
	string(UnauthorizedPayer): "designate a distinct signer-class account as payer; keep this account limited to the Authority role",

	string(PredictableTargetAddress): "add a caller-supplied nonce that is not observable before submission to the seeds, " +
		"or make creation tolerate a pre-funded target (create-if-needed with an initialization check)",

	string(ReentryGuardRequired): "check whether the target already exists and skip re-initialization before writing state",
}

// Finding is a single reportable line of a Diagnostic
type Finding struct {
	Severity       Severity `json:"severity"`
	Rule           Rule     `json:"rule"`
	Kind           string   `json:"kind"`
	Account        string   `json:"account"`
	Roles          string   `json:"roles"`
	Recommendation string   `json:"recommendation"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %s account=%s roles=%s: %s", f.Rule, f.Severity, f.Kind, f.Account, f.Roles, f.Recommendation)
}

// Diagnostic is the human actionable rendering of a Verdict
type Diagnostic struct {
	Instruction string    `json:"instruction"`
	Status      Status    `json:"status"`
	Findings    []Finding `json:"findings"`

	// Error is only set for malformed declarations
	Error string `json:"error,omitempty"`
}

// Malformed returns the diagnostic for a declaration that couldn't be
// constructed
func Malformed(instruction string, err error) *Diagnostic {
	d := &Diagnostic{
		Instruction: instruction,
		Status:      StatusMalformed,
		Findings:    []Finding{},
	}
	if err != nil {
		d.Error = err.Error()
	}
	return d
}

// Report translates a verdict into a diagnostic. Violations are listed before
// advisories, each in verdict order.
func Report(v *Verdict) *Diagnostic {
	d := &Diagnostic{
		Instruction: v.Instruction,
		Status:      v.Status(),
		Findings:    make([]Finding, 0, len(v.Violations)+len(v.Advisories)),
	}

	for _, violation := range v.Violations {
		d.Findings = append(d.Findings, Finding{
			Severity:       SeverityError,
			Rule:           violation.Rule,
			Kind:           string(violation.Kind),
			Account:        violation.Account,
			Roles:          violation.Roles.String(),
			Recommendation: recommendations[string(violation.Kind)],
		})
	}

	for _, advisory := range v.Advisories {
		d.Findings = append(d.Findings, Finding{
			Severity:       SeverityWarning,
			Rule:           advisory.Rule,
			Kind:           string(advisory.Kind),
			Account:        advisory.Account,
			Roles:          advisory.Roles.String(),
			Recommendation: recommendations[string(advisory.Kind)],
		})
	}

	return d
}

func (d *Diagnostic) title() string {
	if len(d.Instruction) == 0 {
		return "<unnamed>"
	}
	return d.Instruction
}

func (d *Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", d.title(), d.Status)
	if len(d.Error) > 0 {
		sb.WriteString("\n  ")
		sb.WriteString(d.Error)
	}
	for _, f := range d.Findings {
		sb.WriteString("\n  ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

// WriteText writes the diagnostic as text, optionally highlighting the status
// and severities for a terminal
func WriteText(w io.Writer, d *Diagnostic, colorize bool) error {
	status := string(d.Status)
	if colorize {
		status = statusColor(d.Status).Sprint(status)
	}

	if _, err := fmt.Fprintf(w, "%s: %s\n", d.title(), status); err != nil {
		return errors.Wrap(err, "error writing diagnostic header")
	}

	if len(d.Error) > 0 {
		if _, err := fmt.Fprintf(w, "  %s\n", d.Error); err != nil {
			return errors.Wrap(err, "error writing diagnostic error")
		}
	}

	for _, f := range d.Findings {
		severity := string(f.Severity)
		if colorize {
			severity = severityColor(f.Severity).Sprint(severity)
		}

		_, err := fmt.Fprintf(w, "  [%s] %s %s account=%s roles=%s\n      %s\n", f.Rule, severity, f.Kind, f.Account, f.Roles, f.Recommendation)
		if err != nil {
			return errors.Wrap(err, "error writing diagnostic finding")
		}
	}
	return nil
}

// WriteJSON writes the diagnostics as an indented JSON array
func WriteJSON(w io.Writer, diagnostics []*Diagnostic) error {
	if diagnostics == nil {
		diagnostics = []*Diagnostic{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(diagnostics); err != nil {
		return errors.Wrap(err, "error encoding diagnostics")
	}
	return nil
}

func statusColor(s Status) *color.Color {
	switch s {
	case StatusFail, StatusMalformed:
		return color.New(color.FgRed, color.Bold)
	case StatusPassWithWarnings:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}

func severityColor(s Severity) *color.Color {
	if s == SeverityError {
		return color.New(color.FgRed)
	}
	return color.New(color.FgYellow)
}
