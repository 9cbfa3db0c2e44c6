package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName        = "pcbtrack-api/api"
	boardsRoute       = "/api/boards"
	exportRoute       = "/api/export"
	boardsSpanName    = "boards.list"
	exportSpanName    = "boards.export"
	boardsEventName   = "boards.request.metrics"
	boardsEventDomain = "pcbtrack"
)

// boardRequestMetrics collects timings for the board-list/export path and
// emits them both as an otel span and as one structured log event.
type boardRequestMetrics struct {
	logger          *log.Logger
	span            trace.Span
	route           string
	start           time.Time
	fetchDuration   time.Duration
	computeDuration time.Duration
	encodeDuration  time.Duration
	includeDeleted  bool
	boardsReturned  int
	errorStage      string
}

func newBoardRequestMetrics(ctx context.Context, logger *log.Logger, route, spanName string) (*boardRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, spanName)
	return &boardRequestMetrics{
		logger: logger,
		span:   span,
		route:  route,
		start:  time.Now(),
	}, spanCtx
}

func (m *boardRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *boardRequestMetrics) ObserveCompute(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.computeDuration = duration
}

func (m *boardRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *boardRequestMetrics) SetIncludeDeleted(include bool) {
	m.includeDeleted = include
}

func (m *boardRequestMetrics) SetBoardsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.boardsReturned = count
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finishes the span and writes the observability event. It must be
// called exactly once per request.
func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Bool("pcbtrack.boards.include_deleted", m.includeDeleted),
		attribute.Int("pcbtrack.boards.returned", m.boardsReturned),
		attribute.Float64("pcbtrack.boards.total_ms", totalMs),
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("pcbtrack.boards.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.computeDuration > 0 {
		attrs = append(attrs, attribute.Float64("pcbtrack.boards.compute_ms", durationToMillis(m.computeDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("pcbtrack.boards.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("pcbtrack.boards.error_stage", m.errorStage))
	}

	eventAttrs := make([]attribute.KeyValue, 0, len(attrs)+4)
	eventAttrs = append(eventAttrs,
		attribute.String("event.name", boardsEventName),
		attribute.String("event.domain", boardsEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	)
	eventAttrs = append(eventAttrs, attrs...)
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if err != nil || status >= 500 {
			desc := "request failed"
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	logAttrs := map[string]any{
		"http.route":                      m.route,
		"http.status_code":                status,
		"pcbtrack.boards.include_deleted": m.includeDeleted,
		"pcbtrack.boards.returned":        m.boardsReturned,
		"pcbtrack.boards.total_ms":        totalMs,
	}
	if m.fetchDuration > 0 {
		logAttrs["pcbtrack.boards.fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.computeDuration > 0 {
		logAttrs["pcbtrack.boards.compute_ms"] = durationToMillis(m.computeDuration)
	}
	if m.encodeDuration > 0 {
		logAttrs["pcbtrack.boards.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		logAttrs["pcbtrack.boards.error_stage"] = m.errorStage
	}

	fields := log.Fields{
		"event.name":      boardsEventName,
		"event.domain":    boardsEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      logAttrs,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}

	m.logger.WithFields(fields).Info("observability.event")
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
