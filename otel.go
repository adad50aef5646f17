package inbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/inbox"
)

// Instrumented operations. Each gets inbox.<op>.duration, .count and .errors.
const (
	opSend          = "send"
	opList          = "list"
	opConversations = "conversations"
	opGet           = "get"
	opDelete        = "delete"
	opClear         = "clear"
	opNotify        = "notify"
)

var instrumentedOps = []string{opSend, opList, opConversations, opGet, opDelete, opClear, opNotify}

// opInstruments are the metric instruments of one operation.
type opInstruments struct {
	latency metric.Float64Histogram
	count   metric.Int64Counter
	errors  metric.Int64Counter
}

// otelInstrumentation holds OpenTelemetry instrumentation for the inbox service.
type otelInstrumentation struct {
	tracingEnabled bool
	tracer         trace.Tracer

	metricsEnabled bool
	ops            map[string]*opInstruments
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics creates the instruments for every operation.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)
	o.ops = make(map[string]*opInstruments, len(instrumentedOps))

	for _, op := range instrumentedOps {
		inst := &opInstruments{}
		var err error

		inst.latency, err = meter.Float64Histogram(
			"inbox."+op+".duration",
			metric.WithDescription("Duration of "+op+" operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return err
		}

		inst.count, err = meter.Int64Counter(
			"inbox."+op+".count",
			metric.WithDescription("Number of "+op+" operations"),
		)
		if err != nil {
			return err
		}

		inst.errors, err = meter.Int64Counter(
			"inbox."+op+".errors",
			metric.WithDescription("Number of "+op+" errors"),
		)
		if err != nil {
			return err
		}

		o.ops[op] = inst
	}
	return nil
}

// startSpan starts a new span if tracing is enabled.
// The returned func ends the span, recording err if non-nil.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// record records one operation's duration, count and error.
func (o *otelInstrumentation) record(ctx context.Context, op string, duration time.Duration, err error, attrs ...attribute.KeyValue) {
	if !o.metricsEnabled {
		return
	}
	inst, ok := o.ops[op]
	if !ok {
		return
	}

	opt := metric.WithAttributes(attrs...)
	inst.latency.Record(ctx, duration.Seconds(), opt)
	inst.count.Add(ctx, 1, opt)
	if err != nil {
		inst.errors.Add(ctx, 1, opt)
	}
}

// track starts a span for op and returns a func that ends it and records
// metrics. Call the returned func with a pointer to the operation's error.
func (o *otelInstrumentation) track(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error, ...attribute.KeyValue)) {
	ctx, endSpan := o.startSpan(ctx, "inbox."+op, attrs...)
	start := time.Now()
	return ctx, func(errp *error, metricAttrs ...attribute.KeyValue) {
		var err error
		if errp != nil {
			err = *errp
		}
		endSpan(err)
		o.record(ctx, op, time.Since(start), err, metricAttrs...)
	}
}
