package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type applicationContextKey struct{}

// NewContext returns a context carrying the New Relic application that events
// and custom metrics are reported to. A nil app leaves ctx untouched.
func NewContext(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, applicationContextKey{}, app)
}

func applicationFromContext(ctx context.Context) (*newrelic.Application, bool) {
	app, ok := ctx.Value(applicationContextKey{}).(*newrelic.Application)
	return app, ok && app != nil
}
