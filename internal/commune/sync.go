package commune

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Lister lists current communes.
type Lister interface {
	Communes(ctx context.Context) ([]Commune, error)
}

// Writer upserts communes.
type Writer interface {
	Upsert(ctx context.Context, communes []Commune) (int64, error)
}

// Sync refreshes the commune reference from src.
func Sync(ctx context.Context, src Lister, dst Writer) (int64, error) {
	communes, err := src.Communes(ctx)
	if err != nil {
		return 0, err
	}
	if len(communes) == 0 {
		return 0, eris.New("commune: sync: empty commune list")
	}

	n, err := dst.Upsert(ctx, communes)
	if err != nil {
		return 0, err
	}
	zap.L().Info("communes synced", zap.Int("listed", len(communes)), zap.Int64("upserted", n))
	return n, nil
}
