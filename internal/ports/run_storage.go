package ports

import (
	"context"

	"github.com/alejandrodnm/threshopt/internal/domain"
)

// RunStorage persiste el resumen de cada optimización.
type RunStorage interface {
	SaveRun(ctx context.Context, run domain.RunRecord) error

	// ListRuns devuelve las últimas ejecuciones (más recientes primero).
	// symbol vacío = todos los símbolos.
	ListRuns(ctx context.Context, symbol string, limit int) ([]domain.RunRecord, error)
}
