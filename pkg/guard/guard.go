// Package guard runs the role separation rules inline, ahead of executing a
// creation instruction, and rejects the ones that would fail or be griefed.
package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/code-payments/roleguard/pkg/metrics"
	"github.com/code-payments/roleguard/pkg/roleguard"
)

// ErrRejected indicates the guard refused an instruction. The error carries
// the diagnostic as a *RejectedError.
var ErrRejected = errors.New("instruction rejected")

type RejectedError struct {
	Diagnostic *roleguard.Diagnostic
}

func (e *RejectedError) Error() string {
	kinds := make([]string, 0, len(e.Diagnostic.Findings))
	for _, finding := range e.Diagnostic.Findings {
		kinds = append(kinds, finding.Kind)
	}

	name := e.Diagnostic.Instruction
	if len(name) == 0 {
		name = "<unnamed>"
	}
	return fmt.Sprintf("%s: %s: %s", ErrRejected, name, strings.Join(kinds, ", "))
}

// Is allows errors.Is(err, ErrRejected)
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Guard validates creation instructions before they're executed.
//
// It holds no per-instruction state and is safe for concurrent use.
type Guard struct {
	log    *logrus.Entry
	conf   *conf
	engine *roleguard.Engine
}

func NewGuard(configProvider ConfigProvider) *Guard {
	return &Guard{
		log:  logrus.StandardLogger().WithField("type", "guard/guard"),
		conf: configProvider(),
		engine: roleguard.NewEngine(
			roleguard.CheckSignerPayer,
			roleguard.CheckAddressPredictability,
		),
	}
}

// Check constructs and validates a single declaration.
//
// Malformed declarations are returned as roleguard.ErrMalformedRoles without a
// verdict. A verdict with violations, or with advisories when warnings are
// treated as errors, is returned alongside a *RejectedError unless enforcement
// is disabled.
func (g *Guard) Check(ctx context.Context, roles *roleguard.Roles) (*roleguard.Verdict, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Check")
	defer tracer.End()

	var name string
	if roles != nil {
		name = roles.Name
	}

	log := g.log.WithFields(logrus.Fields{
		"method":      "Check",
		"instruction": name,
	})
	tracer.AddAttribute("instruction", name)

	ix, err := roleguard.Construct(roles)
	if err != nil {
		tracer.OnError(err)
		log.WithError(err).Warn("malformed roles")
		recordMalformedEvent(ctx, name, err)
		return nil, err
	}

	verdict := g.engine.Validate(ix)
	diagnostic := roleguard.Report(verdict)

	log = log.WithField("status", diagnostic.Status)
	tracer.AddAttribute("status", string(diagnostic.Status))

	rejected := !verdict.Passed() || (verdict.HasWarnings() && g.conf.treatWarningsAsErrors.Get(ctx))
	enforced := rejected && !g.conf.disableEnforcement.Get(ctx)

	if g.conf.logFindings.Get(ctx) {
		for _, finding := range diagnostic.Findings {
			findingLog := log.WithFields(logrus.Fields{
				"rule":    finding.Rule,
				"kind":    finding.Kind,
				"account": finding.Account,
				"roles":   finding.Roles,
			})

			if finding.Severity == roleguard.SeverityError {
				findingLog.Warn(finding.Recommendation)
			} else {
				findingLog.Info(finding.Recommendation)
			}
		}
	}

	for _, finding := range diagnostic.Findings {
		recordFindingEvent(ctx, name, finding, enforced)
	}
	metrics.RecordCount(ctx, findingsMetricName, uint64(len(diagnostic.Findings)))

	if !rejected {
		log.Debug("instruction passed")
		return verdict, nil
	}

	if !enforced {
		log.Info("enforcement is disabled, allowing rejected instruction")
		return verdict, nil
	}

	err = &RejectedError{Diagnostic: diagnostic}
	tracer.OnError(err)
	log.Info("instruction rejected")
	return verdict, err
}

// Result is the outcome of checking one declaration in CheckAll
type Result struct {
	Roles   *roleguard.Roles
	Verdict *roleguard.Verdict
	Err     error
}

// Diagnostic returns nil when the roles were malformed
func (r *Result) Diagnostic() *roleguard.Diagnostic {
	if r.Verdict == nil {
		return nil
	}
	return roleguard.Report(r.Verdict)
}

// CheckAll checks independent declarations concurrently. Results are in input
// order and per-declaration failures are reported on each Result. The returned
// error is only set when ctx is done before every declaration was checked.
func (g *Guard) CheckAll(ctx context.Context, declared []*roleguard.Roles) ([]*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CheckAll")
	defer tracer.End()
	defer recordCheckAllDuration(ctx, time.Now())

	results := make([]*Result, len(declared))

	group, groupCtx := errgroup.WithContext(ctx)
	if limit := g.conf.maxConcurrency.Get(ctx); limit > 0 {
		group.SetLimit(int(limit))
	}

	for i, roles := range declared {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			verdict, err := g.Check(groupCtx, roles)
			results[i] = &Result{
				Roles:   roles,
				Verdict: verdict,
				Err:     err,
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error checking instructions")
	}
	return results, nil
}
