// Package logctx はリクエストの処理中に確定したログ属性をcontextで運ぶ。
//
// infra.TraceHandler がレコード出力時にこれらの属性を付与するため、
// 各レイヤーは鍵ペアIDやビット長を毎回ログ呼び出しに渡す必要がない。
package logctx

import (
	"context"
	"log/slog"
)

// ログ属性のキー
const (
	KeyPairIDKey  = "key_pair_id"
	BitsKey       = "bits"
	BatchIndexKey = "batch_index"
)

type ctxKey struct{}

// With は attrs を追加した context を返す。同じキーは後から追加した値で上書きする。
func With(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	prev := Attrs(ctx)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	for _, a := range prev {
		if !hasKey(attrs, a.Key) {
			merged = append(merged, a)
		}
	}
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

// Attrs は ctx に積まれた属性を返す。
func Attrs(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	return attrs
}

// WithKeyPairID は鍵ペアIDを付与する。
func WithKeyPairID(ctx context.Context, id string) context.Context {
	return With(ctx, slog.String(KeyPairIDKey, id))
}

// WithBits は法のビット長を付与する。
func WithBits(ctx context.Context, bits int) context.Context {
	return With(ctx, slog.Int(BitsKey, bits))
}

// WithBatchIndex はバッチ内の位置を付与する。
func WithBatchIndex(ctx context.Context, i int) context.Context {
	return With(ctx, slog.Int(BatchIndexKey, i))
}

func hasKey(attrs []slog.Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}
