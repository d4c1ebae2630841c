/*
Package tracing provides lightweight request tracing.

Spans are logged through zap when they finish. Trace context travels in the
X-Trace-ID and X-Span-ID headers, so a request into the gateway and the
bridge calls it triggers share one trace id.

# Usage

	tracer := tracing.New("sessiongate", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// outbound
	tracing.InjectTraceContext(ctx, req.Header)
*/
package tracing
