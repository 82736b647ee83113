package infra

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"wiener-keygen-service/config"
	"wiener-keygen-service/internal/logctx"
)

// TraceHandler は鍵ペアの識別情報とトレース情報をログに付与するslogハンドラ。
//
// 鍵ペアIDやビット長は logctx で context に積まれたものを出力する。
// 秘密指数は context に積まないこと。
type TraceHandler struct {
	next      slog.Handler
	projectID string
	tracing   bool
}

// NewTraceHandler は next に出力を委ねる TraceHandler を生成する。
func NewTraceHandler(next slog.Handler, cfg *config.Config) *TraceHandler {
	return &TraceHandler{
		next:      next,
		projectID: cfg.GoogleCloudProject,
		tracing:   cfg.OtelEnabled,
	}
}

func (h *TraceHandler) clone(next slog.Handler) *TraceHandler {
	return &TraceHandler{next: next, projectID: h.projectID, tracing: h.tracing}
}

// Enabled はハンドラがログを処理するかどうかを返す。
func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle は context の鍵ペア属性とスパン情報をレコードに加えて出力する。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(logctx.Attrs(ctx)...)
	if h.tracing {
		r.AddAttrs(h.traceAttrs(trace.SpanContextFromContext(ctx))...)
	}
	return h.next.Handle(ctx, r)
}

// traceAttrs は Cloud Logging がスパンと関連付けられる形式の属性を返す。
func (h *TraceHandler) traceAttrs(sc trace.SpanContext) []slog.Attr {
	if !sc.IsValid() {
		return nil
	}
	traceID := sc.TraceID().String()
	spanID := sc.SpanID().String()
	attrs := []slog.Attr{
		slog.String("trace", traceID),
		slog.String("spanId", spanID),
		slog.Bool("traceSampled", sc.IsSampled()),
	}
	if h.projectID != "" {
		attrs = append(attrs,
			slog.String("logging.googleapis.com/trace", "projects/"+h.projectID+"/traces/"+traceID),
			slog.String("logging.googleapis.com/spanId", spanID),
		)
	}
	return attrs
}

// WithAttrs は属性を追加した新しいハンドラを返す。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.clone(h.next.WithAttrs(attrs))
}

// WithGroup はグループを追加した新しいハンドラを返す。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return h.clone(h.next.WithGroup(name))
}

// NewLogger は w に JSON を出力する TraceHandler 付きロガーを生成する。
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	return slog.New(NewTraceHandler(jsonHandler, cfg))
}

// SetupLogger は NewLogger のロガーをグローバルに設定する。
func SetupLogger(w io.Writer, cfg *config.Config) {
	slog.SetDefault(NewLogger(w, cfg))
}
