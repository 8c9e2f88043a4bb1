package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a span with:
//   - Span name: event.Type (e.g. "status_update", "checkpoint_ready")
//   - Attributes: workflow ID plus all event.Meta fields
//   - Status: error if event.Meta["error"] exists
//
// Spans are ended immediately because events mark points in time, not
// durations. Worker call durations are carried as the "duration_ms"
// attribute on worker_finished spans.
//
// Usage:
//
//	tracer := otel.Tracer("maestro")
//	emitter := emit.NewOTelEmitter(tracer)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates a new OTelEmitter using the given tracer, typically
// from otel.Tracer("service-name").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates a span for the event.
func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Type)
	defer span.End()

	span.SetAttributes(
		attribute.String("maestro.workflow_id", event.WorkflowID),
	)
	if event.Msg != "" {
		span.SetAttributes(attribute.String("maestro.msg", event.Msg))
	}

	o.addMetaAttributes(span, event.Meta)

	if errStr, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errStr)
		span.RecordError(fmt.Errorf("%s", errStr))
	}
}

// Flush forces export of all pending spans. Call before shutdown so buffered
// spans reach the backend.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) addMetaAttributes(span trace.Span, meta map[string]interface{}) {
	for key, value := range meta {
		attrKey := "maestro." + key
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
