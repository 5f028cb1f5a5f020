package logs

import "context"

// Span names one unit of work, such as evaluating a file, across log
// records and errors.
type Span string

type spanKey struct{}

var SpanKey spanKey

func SpanOf(ctx context.Context) (Span, bool) {
	span, ok := ctx.Value(SpanKey).(Span)
	return span, ok && span != ""
}
