package observer

import (
	"context"
	"time"

	corpus "github.com/solumlabs/corpus"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// ObservedRetriever wraps a corpus.ContextRetriever with OTEL
// instrumentation.
type ObservedRetriever struct {
	inner corpus.ContextRetriever
	inst  *Instruments
}

var _ corpus.ContextRetriever = (*ObservedRetriever)(nil)

// WrapRetriever returns an instrumented context retriever.
func WrapRetriever(inner corpus.ContextRetriever, inst *Instruments) *ObservedRetriever {
	return &ObservedRetriever{inner: inner, inst: inst}
}

func (o *ObservedRetriever) Retrieve(ctx context.Context, query string, cfg corpus.RetrieveConfig) (corpus.RetrievalResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "retrieval.retrieve")
	defer span.End()
	start := time.Now()

	result, err := o.inner.Retrieve(ctx, query, cfg)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			AttrStrategy.String(result.Strategy.String()),
			AttrItemCount.Int(len(result.Items)),
		)
	}

	o.inst.RetrievalRequests.Add(ctx, 1, metric.WithAttributes(
		AttrStrategy.String(result.Strategy.String()),
		attribute.String("status", status),
	))
	o.inst.RetrievalDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrStrategy.String(result.Strategy.String()),
	))

	return result, err
}

// RecordIngest emits the ingest job counter and duration histogram. The
// orchestrator is a concrete type, so callers record around it instead of
// wrapping.
func RecordIngest(ctx context.Context, inst *Instruments, sourceID, status string, chunks int, d time.Duration) {
	inst.IngestJobs.Add(ctx, 1, metric.WithAttributes(
		AttrSourceID.String(sourceID),
		AttrJobStatus.String(status),
		AttrChunkCount.Int(chunks),
	))
	inst.IngestDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		AttrJobStatus.String(status),
	))
}
