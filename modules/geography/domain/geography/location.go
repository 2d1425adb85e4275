package geography

import (
	"time"

	"github.com/google/uuid"
)

// Location is a pre-existing target row; RegionName is the join key into
// Geography.RegionName.
type Location struct {
	ID         uuid.UUID
	Name       string
	RegionName string
	CountryISO string
	CreatedAt  time.Time
}

type LocationFilter struct {
	// ExcludeCountryISO drops locations of that country when non-empty.
	ExcludeCountryISO string
}

// Link joins a geography and a location.
type Link struct {
	ID          uuid.UUID
	GeographyID uuid.UUID
	LocationID  uuid.UUID
	DateBegin   *time.Time
	DateEnd     *time.Time
	SortOrder   int
	Status      string
	Type        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
