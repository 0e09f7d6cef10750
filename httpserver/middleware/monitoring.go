package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/bannermail/logger"
)

var (
	meter = otel.GetMeterProvider().Meter("github.com/pure-golang/bannermail/httpserver/middleware")
	// nolint:errcheck // Sync OpenTelemetry instruments never return errors
	requestsCount, _       = meter.Int64Counter("http.request_count")
	requestTimeHist, _     = meter.Int64Histogram("http.request_time", metric.WithUnit("ms"))
	requestBodyLenHist, _  = meter.Int64Histogram("http.request_body_len", metric.WithUnit("KB"))
	responseBodyLenHist, _ = meter.Int64Histogram("http.response_body_len", metric.WithUnit("KB"))
	tracer                 = otel.Tracer("github.com/pure-golang/bannermail/httpserver/middleware")
)

// Monitoring traces incoming requests and attaches a request scoped logger to
// the context. Request bodies and credential headers are never recorded:
// compose forms carry SMTP passwords.
func Monitoring(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqTime := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		path := strings.Split(r.RequestURI, "?")[0]
		ctx, span := tracer.Start(ctx, r.Method+" "+path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		traceID := span.SpanContext().TraceID().String()

		log := slog.Default().With("method", r.Method, "path", path)
		if span.SpanContext().HasTraceID() {
			log = log.With("trace_id", traceID)
		}

		attrs := semconv.NetAttributesFromHTTPRequest("tcp", r)
		attrs = append(attrs, semconv.HTTPServerAttributesFromHTTPRequest("bannermail", path, r)...)
		attrs = append(attrs,
			attribute.String("http.request.header.User-Agent", r.Header.Get("User-Agent")),
			attribute.String("http.request.header.Content-Type", r.Header.Get("Content-Type")),
			attribute.Int64("http.request.content_length", r.ContentLength),
		)

		w.Header().Set("X-Trace-Id", traceID)

		ctx = logger.NewContext(ctx, log)
		srw := newStatefulRespWriter(w)

		next.ServeHTTP(srw, r.WithContext(ctx))

		route := routePattern(r, path)
		span.SetName(r.Method + " " + route)
		metricLabels := []attribute.KeyValue{
			attribute.String("http.route", route),
			attribute.String("http.method", r.Method),
		}

		attrs = append(attrs,
			attribute.Int("http.response.status", srw.status),
			attribute.Int("http.response.size", srw.size),
		)
		if isJSON(srw.Header().Get("Content-Type")) {
			attrs = append(attrs, attribute.String("http.response.body_2048", cut(srw.body)))
		}
		span.SetAttributes(attrs...)

		requestsCount.Add(ctx, 1, metric.WithAttributes(append(metricLabels,
			attribute.Int("http.response.code", srw.status))...))
		requestTimeHist.Record(ctx, time.Since(reqTime).Milliseconds(), metric.WithAttributes(metricLabels...))
		if r.ContentLength > 0 {
			requestBodyLenHist.Record(ctx, r.ContentLength/1024, metric.WithAttributes(metricLabels...))
		}
		responseBodyLenHist.Record(ctx, int64(srw.size)/1024, metric.WithAttributes(metricLabels...))

		if srw.status >= 500 {
			span.SetStatus(codes.Error, "")
			return
		}
		span.SetStatus(codes.Ok, "")
	})
}

// routePattern keeps metric cardinality low: /jobs/{id} instead of every job ID.
func routePattern(r *http.Request, fallback string) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return fallback
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

// statefulRespWriter keeps the status, size and last written chunk.
type statefulRespWriter struct {
	http.ResponseWriter
	status int
	size   int
	body   []byte
}

func newStatefulRespWriter(w http.ResponseWriter) *statefulRespWriter {
	return &statefulRespWriter{ResponseWriter: w}
}

func (w *statefulRespWriter) WriteHeader(status int) {
	w.ResponseWriter.WriteHeader(status)
	w.status = status
}

func (w *statefulRespWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	w.body = b
	w.size += len(b)
	return w.ResponseWriter.Write(b)
}

func (w *statefulRespWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

const BodyMaxLen = 2048

func cut(body []byte) string {
	if length := len(body); length > BodyMaxLen {
		return fmt.Sprintf("%s...(%d bytes)", string(body[:BodyMaxLen]), length)
	}
	return string(body)
}
