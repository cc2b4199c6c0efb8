package guard

import (
	"context"
	"time"

	"github.com/code-payments/roleguard/pkg/metrics"
	"github.com/code-payments/roleguard/pkg/roleguard"
)

const (
	metricsStructName = "guard.guard"

	findingEventName   = "RoleGuardViolation"
	malformedEventName = "RoleGuardMalformedRoles"

	findingsMetricName         = "RoleGuard/Findings"
	checkAllDurationMetricName = "RoleGuard/CheckAllDuration"
)

func recordFindingEvent(ctx context.Context, instruction string, finding roleguard.Finding, rejected bool) {
	kvPairs := map[string]interface{}{
		"instruction": instruction,
		"rule":        string(finding.Rule),
		"kind":        finding.Kind,
		"severity":    string(finding.Severity),
		"account":     finding.Account,
		"roles":       finding.Roles,
		"rejected":    rejected,
		"count":       1,
	}
	metrics.RecordEvent(ctx, findingEventName, kvPairs)
}

func recordMalformedEvent(ctx context.Context, instruction string, err error) {
	kvPairs := map[string]interface{}{
		"instruction": instruction,
		"reason":      err.Error(),
		"count":       1,
	}
	metrics.RecordEvent(ctx, malformedEventName, kvPairs)
}

func recordCheckAllDuration(ctx context.Context, start time.Time) {
	metrics.RecordDuration(ctx, checkAllDurationMetricName, time.Since(start))
}
