package observability

import (
	"context"
	"time"

	"github.com/annel0/tilegrid/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Options содержит параметры трассировки
type Options struct {
	Enabled     bool
	ServiceName string
	Endpoint    string // host:port OTLP HTTP, по умолчанию localhost:4318
}

// InitTelemetry настраивает OTLP экспортер и устанавливает глобальный TracerProvider.
// Возвращает функцию shutdown, которую нужно вызвать при завершении приложения.
// Если трассировка выключена, глобальный провайдер остаётся no-op.
func InitTelemetry(ctx context.Context, opts Options, logger *logging.Logger) (func(context.Context) error, error) {
	if !opts.Enabled {
		logger.Info("📡 OpenTelemetry отключен")
		return func(context.Context) error { return nil }, nil
	}

	// OTLP HTTP экспортер (по умолчанию localhost:4318)
	var exporterOpts []otlptracehttp.Option
	if opts.Endpoint != "" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpoint(opts.Endpoint), otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	tp, err := NewTracerProvider(ctx, opts.ServiceName, trace.WithBatcher(exp))
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	logger.Info("📡 OpenTelemetry инициализирован (OTLP → %s, service=%s)", endpointOrDefault(opts.Endpoint), opts.ServiceName)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, nil
}

// NewTracerProvider создаёт провайдер с ресурсом сервиса и дополнительными опциями
// (экспортер, процессор спанов в тестах)
func NewTracerProvider(ctx context.Context, serviceName string, opts ...trace.TracerProviderOption) (*trace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	opts = append(opts, trace.WithResource(res))
	return trace.NewTracerProvider(opts...), nil
}

func endpointOrDefault(endpoint string) string {
	if endpoint == "" {
		return "localhost:4318"
	}
	return endpoint
}
