package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/poiesic/vecbatch/ai"
)

var throttledCodes = map[string]bool{
	"ThrottlingException":           true,
	"TooManyRequestsException":      true,
	"ServiceQuotaExceededException": true,
}

var transientCodes = map[string]bool{
	"ServiceUnavailableException": true,
	"ModelTimeoutException":       true,
	"ModelNotReadyException":      true,
	"InternalServerException":     true,
}

// classifyError wraps an InvokeModel error with one of the ai error classes.
// Errors without an API error code failed in transport and are transient.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case throttledCodes[code]:
			return fmt.Errorf("%w: %w", ai.ErrThrottled, err)
		case transientCodes[code]:
			return fmt.Errorf("%w: %w", ai.ErrTransient, err)
		default:
			return fmt.Errorf("%w: %w", ai.ErrPermanent, err)
		}
	}
	return fmt.Errorf("%w: %w", ai.ErrTransient, err)
}
