package logs

import (
	"context"
	"fmt"
)

// WrapSpan annotates err with the span of ctx. The original error stays
// reachable through errors.Is and errors.As.
func WrapSpan(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	span, ok := SpanOf(ctx)
	if !ok {
		return err
	}
	return fmt.Errorf("%w (span %s)", err, span)
}
