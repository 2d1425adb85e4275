package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

type LocationRepository struct {
	db DB
}

func NewLocationRepository(db DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) ListLocations(ctx context.Context, filter geography.LocationFilter) ([]geography.Location, error) {
	sql := `SELECT location_id, COALESCE(name, ''), COALESCE(geo_region_name, ''), COALESCE(geo_country_iso, ''), created_at FROM ent_location`
	var args []any
	if filter.ExcludeCountryISO != "" {
		sql += ` WHERE geo_country_iso <> $1`
		args = append(args, filter.ExcludeCountryISO)
	}
	sql += ` ORDER BY created_at, location_id`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list locations")
	}
	defer rows.Close()

	var out []geography.Location
	for rows.Next() {
		var l geography.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.RegionName, &l.CountryISO, &l.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan location")
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate locations")
	}
	return out, nil
}
