// Package middleware はHTTPミドルウェアと監査ログを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// 監査ログの結果
const (
	ResultSuccess = "SUCCESS"
	ResultFailed  = "FAILED"
)

// WriteAuditLog は鍵ペア操作の監査ログを出力する。
// 秘密指数は決して出力しない。
func WriteAuditLog(ctx context.Context, operation, keyPairID string, bits int, result string) {
	attrs := []any{
		"operation", operation,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	}
	if keyPairID != "" {
		attrs = append(attrs, "key_pair_id", keyPairID)
	}
	if bits > 0 {
		attrs = append(attrs, "bits", bits)
	}
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		attrs = append(attrs, "request_id", reqID)
	}
	slog.InfoContext(ctx, "key pair operation completed", attrs...)
}

// RequestLogger はリクエストごとのアクセスログをslogで出力する。
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		slog.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
