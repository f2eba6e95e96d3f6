package ports

import (
	"context"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

// Reporter presenta el resultado de una optimización al usuario.
type Reporter interface {
	Report(ctx context.Context, run domain.RunRecord, result domain.OptimizationResult) error
}
