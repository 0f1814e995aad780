package emit

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by converting events into OpenTelemetry
// spans.
//
// Each event becomes an instant span named after event.Msg, carrying runID,
// step, node and every Meta field as attributes. Events whose Meta contains
// an "error" key set the span status to error.
//
// Usage:
//
//	tracer := otel.Tracer("agentflow-go")
//	emitter := emit.NewOTelEmitter(tracer)
//
// Wire the tracer provider (exporter, sampling) in application code with the
// OpenTelemetry SDK; the emitter only needs a trace.Tracer.
type OTelEmitter struct {
	mu     sync.Mutex
	tracer trace.Tracer
}

// NewOTelEmitter creates an emitter producing spans through tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and immediately ends a span for the event.
func (o *OTelEmitter) Emit(event Event) {
	o.emitSpan(context.Background(), event)
}

// EmitBatch creates spans for all events in order.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		o.emitSpan(ctx, event)
	}
	return nil
}

// Flush is a no-op; span export is the tracer provider's responsibility.
func (o *OTelEmitter) Flush(context.Context) error { return nil }

func (o *OTelEmitter) emitSpan(ctx context.Context, event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	attrs := []attribute.KeyValue{
		attribute.String("workflow.run_id", event.RunID),
		attribute.Int("workflow.step", event.Step),
		attribute.String("workflow.node", event.Node),
	}
	for k, v := range event.Meta {
		attrs = append(attrs, attribute.String("workflow.meta."+k, fmt.Sprint(v)))
	}

	_, span := o.tracer.Start(ctx, event.Msg, trace.WithAttributes(attrs...))
	if errVal, ok := event.Meta["error"]; ok {
		span.SetStatus(codes.Error, fmt.Sprint(errVal))
	}
	span.End()
}
