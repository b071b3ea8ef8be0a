package ussd

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/thebtf/inkingi-ussd/internal/ussd"

var (
	collaboratorFailures metric.Int64Counter
	actionsInvoked       metric.Int64Counter
)

func init() {
	meter := otel.Meter(instrumentationName)
	var err error
	collaboratorFailures, err = meter.Int64Counter("ussd.collaborator.failures",
		metric.WithDescription("External collaborator calls that failed and were masked"))
	if err != nil {
		otel.Handle(err)
	}
	actionsInvoked, err = meter.Int64Counter("ussd.actions",
		metric.WithDescription("Terminal actions invoked"))
	if err != nil {
		otel.Handle(err)
	}
}

func recordFailure(ctx context.Context, collaborator string) {
	if collaboratorFailures == nil {
		return
	}
	collaboratorFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("collaborator", collaborator)))
}

func recordAction(ctx context.Context, action string, success bool) {
	if actionsInvoked == nil {
		return
	}
	actionsInvoked.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.Bool("success", success),
	))
}
