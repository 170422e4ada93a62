package workflow

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
)

// ErrorTypingInterceptor tags untyped activity errors with the activity
// name, so a failed sweep step shows up as e.g. "BlockOrganization" in the
// Temporal UI rather than a generic ApplicationError.
type ErrorTypingInterceptor struct {
	interceptor.WorkerInterceptorBase
}

func (e *ErrorTypingInterceptor) InterceptActivity(
	ctx context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &errorTypingActivityInterceptor{next: next}
}

type errorTypingActivityInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	next interceptor.ActivityInboundInterceptor
}

func (e *errorTypingActivityInterceptor) Init(outbound interceptor.ActivityOutboundInterceptor) error {
	return e.next.Init(outbound)
}

func (e *errorTypingActivityInterceptor) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (any, error) {
	result, err := e.next.ExecuteActivity(ctx, in)
	if err != nil {
		return result, typedActivityError(activity.GetInfo(ctx).ActivityType.Name, err)
	}
	return result, nil
}

// typedActivityError wraps err in an ApplicationError of type name. Errors
// that already carry a type, such as non-retryable notice failures, keep it.
func typedActivityError(name string, err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return err
	}
	return temporal.NewApplicationErrorWithCause(err.Error(), name, err)
}
