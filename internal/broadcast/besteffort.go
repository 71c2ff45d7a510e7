package broadcast

import (
	"context"

	"github.com/rs/zerolog/log"
)

// BestEffort runs a provider call whose failure must not fail the local
// state transition. The error is logged and swallowed; the ending or
// cancellation of a class proceeds on local authority.
func BestEffort(ctx context.Context, op string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("best-effort provider call failed")
	}
}
