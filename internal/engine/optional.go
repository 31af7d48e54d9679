package engine

import (
	"context"

	"github.com/picklr-io/ggprov/internal/logging"
)

// Unavailable is substituted for outputs whose lookup failed but are not
// required for the resource to be usable.
const Unavailable = "UNAVAILABLE"

// Optional resolves a non-critical output. A failed lookup is logged and
// replaced by Unavailable instead of failing the Create.
func Optional(ctx context.Context, name string, lookup func(ctx context.Context) (string, error)) string {
	v, err := lookup(ctx)
	if err != nil || v == "" {
		logging.Warn("optional output unavailable", "output", name, "error", err)
		return Unavailable
	}
	return v
}
