package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "muxtrack"

// Metrics holds all OTEL metric instruments for muxtrack.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// Reconcile counters
	ReconcileRuns    metric.Int64Counter
	ReconcileRecords metric.Int64Counter

	// Capture counters
	Captures          metric.Int64Counter
	SelfCaptureBlocks metric.Int64Counter

	// Store counters
	StoreWrites  metric.Int64Counter
	StoreDeletes metric.Int64Counter

	// Preview cache counters (dashboard)
	PreviewCacheHits   metric.Int64Counter
	PreviewCacheMisses metric.Int64Counter

	// LLM token counters (partitioned by provider + model via attributes)
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	// --- Reconcile counters ---

	m.ReconcileRuns, err = meter.Int64Counter("reconcile.runs",
		metric.WithDescription("Total reconciliation passes"))
	if err != nil {
		return nil, err
	}

	m.ReconcileRecords, err = meter.Int64Counter("reconcile.records",
		metric.WithDescription("Agent records seen by reconciliation, partitioned by outcome (alive, pruned, failed)"))
	if err != nil {
		return nil, err
	}

	// --- Capture counters ---

	m.Captures, err = meter.Int64Counter("capture.requests",
		metric.WithDescription("Pane capture attempts partitioned by backend and outcome (ok, absent)"))
	if err != nil {
		return nil, err
	}

	m.SelfCaptureBlocks, err = meter.Int64Counter("capture.self_blocked",
		metric.WithDescription("Capture requests refused because the target was the requesting pane"))
	if err != nil {
		return nil, err
	}

	// --- Store counters ---

	m.StoreWrites, err = meter.Int64Counter("store.writes",
		metric.WithDescription("Agent records written to the state directory"))
	if err != nil {
		return nil, err
	}

	m.StoreDeletes, err = meter.Int64Counter("store.deletes",
		metric.WithDescription("Agent records removed from the state directory"))
	if err != nil {
		return nil, err
	}

	// --- Preview cache counters ---

	m.PreviewCacheHits, err = meter.Int64Counter("preview_cache.hits",
		metric.WithDescription("Dashboard preview served from cache without re-capturing the pane"))
	if err != nil {
		return nil, err
	}

	m.PreviewCacheMisses, err = meter.Int64Counter("preview_cache.misses",
		metric.WithDescription("Dashboard preview captures (cache empty, expired, or invalidated)"))
	if err != nil {
		return nil, err
	}

	// --- LLM token counters ---

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total LLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total LLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordReconcile records the outcome counts of one reconciliation pass.
func (m *Metrics) RecordReconcile(ctx context.Context, alive, pruned, failed int) {
	if m == nil {
		return
	}
	m.ReconcileRuns.Add(ctx, 1)
	m.ReconcileRecords.Add(ctx, int64(alive), metric.WithAttributes(
		attribute.String("reconcile.outcome", "alive")))
	m.ReconcileRecords.Add(ctx, int64(pruned), metric.WithAttributes(
		attribute.String("reconcile.outcome", "pruned")))
	m.ReconcileRecords.Add(ctx, int64(failed), metric.WithAttributes(
		attribute.String("reconcile.outcome", "failed")))
}

// RecordCapture records one pane capture attempt.
func (m *Metrics) RecordCapture(ctx context.Context, backend string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "absent"
	}
	m.Captures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mux.backend", backend),
		attribute.String("capture.outcome", outcome),
	))
}

// RecordSelfCaptureBlock records a capture refused by the self-capture guard.
func (m *Metrics) RecordSelfCaptureBlock(ctx context.Context, backend string) {
	if m == nil {
		return
	}
	m.SelfCaptureBlocks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mux.backend", backend),
	))
}

// RecordStoreWrite records one agent record upsert.
func (m *Metrics) RecordStoreWrite(ctx context.Context) {
	if m == nil {
		return
	}
	m.StoreWrites.Add(ctx, 1)
}

// RecordStoreDelete records one agent record removal.
func (m *Metrics) RecordStoreDelete(ctx context.Context) {
	if m == nil {
		return
	}
	m.StoreDeletes.Add(ctx, 1)
}

// RecordPreviewCacheHit records a dashboard preview served from cache.
func (m *Metrics) RecordPreviewCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.PreviewCacheHits.Add(ctx, 1)
}

// RecordPreviewCacheMiss records a dashboard preview that required a capture.
func (m *Metrics) RecordPreviewCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.PreviewCacheMisses.Add(ctx, 1)
}

// RecordTokens records LLM token usage on the metric counters.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
}
