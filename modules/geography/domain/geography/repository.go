package geography

import (
	"context"

	"github.com/google/uuid"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HierarchyReader reads the legacy site-location hierarchy in source order.
type HierarchyReader interface {
	ListNodes(ctx context.Context) ([]LegacyNode, error)
}

type LegacyInventory interface {
	Inventory(ctx context.Context) (Inventory, error)
}

type LegacyStore interface {
	Pinger
	HierarchyReader
	LegacyInventory
}

type GeographyReader interface {
	// List returns every geography ordered by created_at, id.
	List(ctx context.Context) ([]Geography, error)
	ExternalKeys(ctx context.Context) ([]string, error)
	GetByExternalKey(ctx context.Context, key string) (Geography, error)
}

type GeographyWriter interface {
	// InsertBatch writes all rows in one transaction and returns rows affected.
	InsertBatch(ctx context.Context, rows []Geography) (int64, error)
	Update(ctx context.Context, g Geography) error
}

type CityNormalizer interface {
	ListWithCity(ctx context.Context) ([]Geography, error)
	ClearCity(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type GeographyStore interface {
	GeographyReader
	GeographyWriter
	CityNormalizer
}

type LocationReader interface {
	ListLocations(ctx context.Context, filter LocationFilter) ([]Location, error)
}

type LinkStore interface {
	ListLinks(ctx context.Context) ([]Link, error)
	InsertLink(ctx context.Context, link Link) error
}

type TargetStore interface {
	Pinger
	GeographyStore
	LocationReader
	LinkStore
}

// RegionCodes are the ISO codes resolved for a country name.
type RegionCodes struct {
	ISO2 string
	ISO3 string
}

type CountryResolver interface {
	// Resolve returns false when name is not a recognised country.
	Resolve(name string) (RegionCodes, bool)
}

type StateCodeLookup interface {
	StateCode(name string) (string, bool)
}
