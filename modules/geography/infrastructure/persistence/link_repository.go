package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

type LinkRepository struct {
	db DB
}

func NewLinkRepository(db DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) ListLinks(ctx context.Context) ([]geography.Link, error) {
	rows, err := r.db.Query(ctx, `
	SELECT geography_location_id, geography_id, location_id, date_begin, date_end,
		COALESCE(sort_order, 0), COALESCE(status, ''), COALESCE(type, ''), created_at, updated_at
	FROM ent_geography_location
	ORDER BY created_at, geography_location_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list geography links")
	}
	defer rows.Close()

	var out []geography.Link
	for rows.Next() {
		var l geography.Link
		if err := rows.Scan(
			&l.ID, &l.GeographyID, &l.LocationID, &l.DateBegin, &l.DateEnd,
			&l.SortOrder, &l.Status, &l.Type, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan geography link")
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate geography links")
	}
	return out, nil
}

func (r *LinkRepository) InsertLink(ctx context.Context, l geography.Link) error {
	if _, err := r.db.Exec(ctx, `
	INSERT INTO ent_geography_location (
		geography_location_id, geography_id, location_id, date_begin, date_end,
		sort_order, status, type, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		l.ID, l.GeographyID, l.LocationID, l.DateBegin, l.DateEnd,
		l.SortOrder, l.Status, l.Type, l.CreatedAt, l.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(geography.ErrDuplicateKey, "insert link for location %s: %v", l.LocationID, err)
		}
		return errors.Wrapf(err, "insert link for location %s", l.LocationID)
	}
	return nil
}
