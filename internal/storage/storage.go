package storage

import (
	"context"

	"positionLedger/internal/model"
)

// Journal is a sink for committed operation records. Journaling is
// observational: a failed append never rolls back accounting.
type Journal interface {
	Append(ctx context.Context, records []model.OperationRecord) error
}
