package persistence

import (
	"context"

	"github.com/go-faster/errors"
)

// Gateway bundles the target-store repositories behind geography.TargetStore.
type Gateway struct {
	*GeographyRepository
	*LocationRepository
	*LinkRepository

	db DB
}

func NewGateway(db DB) *Gateway {
	return &Gateway{
		GeographyRepository: NewGeographyRepository(db),
		LocationRepository:  NewLocationRepository(db),
		LinkRepository:      NewLinkRepository(db),
		db:                  db,
	}
}

func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.db.Ping(ctx); err != nil {
		return errors.Wrap(err, "ping target store")
	}
	return nil
}
