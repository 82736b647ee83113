package infra

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"wiener-keygen-service/config"
)

// 鍵生成設定を表すリソース属性のキー
const (
	attrEnforceWienerBound = attribute.Key("keygen.enforce_wiener_bound")
	attrMillerRabinRounds  = attribute.Key("keygen.miller_rabin_rounds")
	attrDefaultBits        = attribute.Key("keygen.default_bits")
	attrAttemptFactor      = attribute.Key("keygen.attempt_factor")
)

// InitTracer はトレーサープロバイダーを初期化する。
// OTEL_ENABLED=false の場合は nil を返す（トレーシング無効）。
func InitTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.OtelEnabled {
		return nil, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
	)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.OtelSamplingRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// newResource はサービスの識別情報と鍵生成の設定をリソース属性にまとめる。
func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.OtelServiceName),
			semconv.ServiceVersion(config.Version),
			attrEnforceWienerBound.Bool(cfg.EnforceWienerBound),
			attrMillerRabinRounds.Int(cfg.MillerRabinRounds),
			attrDefaultBits.Int(cfg.DefaultKeyBits),
			attrAttemptFactor.Int(cfg.AttemptFactor),
		),
	)
}
