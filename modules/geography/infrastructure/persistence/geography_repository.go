package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

const geographyColumns = `geography_id, parent_id, external_key, geo_city, geo_country_iso, geo_country_name,
	geo_latitude, geo_longitude, geo_region_iso, geo_region_name, map_zoom, name, source_key,
	status, type, created_at, updated_at`

const geographySelectColumns = `geography_id, parent_id, external_key, geo_city,
	COALESCE(geo_country_iso, ''), COALESCE(geo_country_name, ''),
	geo_latitude, geo_longitude, geo_region_iso, geo_region_name, map_zoom, COALESCE(name, ''), source_key,
	COALESCE(status, ''), COALESCE(type, ''), created_at, updated_at`

type GeographyRepository struct {
	db DB
}

func NewGeographyRepository(db DB) *GeographyRepository {
	return &GeographyRepository{db: db}
}

func (r *GeographyRepository) List(ctx context.Context) ([]geography.Geography, error) {
	return r.query(ctx, `SELECT `+geographySelectColumns+` FROM ent_geography ORDER BY created_at, geography_id`)
}

func (r *GeographyRepository) ListWithCity(ctx context.Context) ([]geography.Geography, error) {
	return r.query(ctx, `SELECT `+geographySelectColumns+` FROM ent_geography WHERE geo_city IS NOT NULL ORDER BY created_at, geography_id`)
}

func (r *GeographyRepository) ExternalKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT external_key FROM ent_geography WHERE external_key IS NOT NULL`)
	if err != nil {
		return nil, errors.Wrap(err, "list external keys")
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan external keys")
	}
	return keys, nil
}

func (r *GeographyRepository) GetByExternalKey(ctx context.Context, key string) (geography.Geography, error) {
	rows, err := r.query(ctx, `
	SELECT `+geographySelectColumns+`
	FROM ent_geography
	WHERE lower(external_key) = lower($1)
	ORDER BY created_at, geography_id
	LIMIT 1`, key)
	if err != nil {
		return geography.Geography{}, err
	}
	if len(rows) == 0 {
		return geography.Geography{}, geography.ErrNotFound
	}
	return rows[0], nil
}

// InsertBatch writes rows in a single transaction; one failing row rolls back
// the whole batch.
func (r *GeographyRepository) InsertBatch(ctx context.Context, rows []geography.Geography) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, g := range rows {
		batch.Queue(`
		INSERT INTO ent_geography (`+geographyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			g.ID,
			pgUUIDFromPtr(g.ParentID),
			g.ExternalKey,
			g.City,
			g.CountryISO,
			g.CountryName,
			g.Latitude,
			g.Longitude,
			g.RegionISO,
			g.RegionName,
			int4FromIntPtr(g.MapZoom),
			g.Name,
			g.SourceKey,
			g.Status,
			g.Type,
			g.CreatedAt,
			g.UpdatedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	var affected int64
	for _, g := range rows {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			if isUniqueViolation(err) {
				return 0, errors.Wrapf(geography.ErrDuplicateKey, "insert geography %q: %v", g.Key(), err)
			}
			return 0, errors.Wrapf(err, "insert geography %q", g.Key())
		}
		affected += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, errors.Wrap(err, "close batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return affected, nil
}

// Update rewrites the naming columns and geo_city of an existing row. Parent
// and external key are never changed.
func (r *GeographyRepository) Update(ctx context.Context, g geography.Geography) error {
	tag, err := r.db.Exec(ctx, `
	UPDATE ent_geography
	SET geo_country_iso = $2,
		geo_country_name = $3,
		geo_region_iso = $4,
		name = $5,
		geo_city = $6,
		updated_at = $7
	WHERE geography_id = $1`,
		g.ID, g.CountryISO, g.CountryName, g.RegionISO, g.Name, g.City, g.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update geography %s", g.ID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(geography.ErrNotFound, "update geography %s", g.ID)
	}
	return nil
}

const clearCitySQL = `
	UPDATE ent_geography
	SET geo_city = NULL, updated_at = $2
	WHERE geography_id = ANY($1::uuid[]) AND geo_city IS NOT NULL`

// ids must stay []uuid.UUID: pgx encodes uuid[] parameters in binary.
func clearCityArgs(ids []uuid.UUID, now time.Time) []any {
	return []any{ids, now}
}

func (r *GeographyRepository) ClearCity(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, clearCitySQL, clearCityArgs(ids, time.Now().UTC())...)
	if err != nil {
		return 0, errors.Wrap(err, "clear geography city")
	}
	return tag.RowsAffected(), nil
}

func (r *GeographyRepository) query(ctx context.Context, sql string, args ...any) ([]geography.Geography, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query geographies")
	}
	defer rows.Close()

	var out []geography.Geography
	for rows.Next() {
		var (
			g        geography.Geography
			parentID pgtype.UUID
			mapZoom  pgtype.Int4
		)
		if err := rows.Scan(
			&g.ID,
			&parentID,
			&g.ExternalKey,
			&g.City,
			&g.CountryISO,
			&g.CountryName,
			&g.Latitude,
			&g.Longitude,
			&g.RegionISO,
			&g.RegionName,
			&mapZoom,
			&g.Name,
			&g.SourceKey,
			&g.Status,
			&g.Type,
			&g.CreatedAt,
			&g.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan geography")
		}
		g.ParentID = uuidPtrFromPG(parentID)
		g.MapZoom = intPtrFromInt4(mapZoom)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate geographies")
	}
	return out, nil
}
