package llm

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/docintake/internal/common"
)

// Client sends one prompt to an extraction backend and returns the raw text answer.
// Implementations issue exactly one request per call and never retry.
// Errors wrap common.ErrNetwork, ErrAuth, ErrRateLimit or ErrBackendUnavailable.
type Client interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// Unavailable is a Client for a backend kind that is configured but not implemented.
type Unavailable struct {
	Provider string
}

func (u Unavailable) Send(context.Context, string) (string, error) {
	return "", common.NewAppError("BACKEND_UNAVAILABLE",
		fmt.Sprintf("provider %q is not implemented", u.Provider),
		common.ErrBackendUnavailable)
}
