package legacy

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

const (
	siteTable             = "ent_site"
	siteLocationTable     = "web_site_location"
	siteLocationItemTable = "web_site_location_item"
)

var nodeColumns = []string{
	"sit_loc_id",
	"parent_sit_loc_id",
	"web_key",
	"default_text",
	"map_lat",
	"map_long",
	"google_zoom",
	"country_iso2",
}

type nodeRow struct {
	ID          int64           `db:"sit_loc_id"`
	ParentID    sql.NullInt64   `db:"parent_sit_loc_id"`
	WebKey      sql.NullString  `db:"web_key"`
	DefaultText sql.NullString  `db:"default_text"`
	MapLat      sql.NullFloat64 `db:"map_lat"`
	MapLong     sql.NullFloat64 `db:"map_long"`
	GoogleZoom  sql.NullInt32   `db:"google_zoom"`
	CountryISO2 sql.NullString  `db:"country_iso2"`
}

// Open returns a lazily connected handle on the legacy store.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open legacy store")
	}
	db.SetMaxOpenConns(2)
	return db, nil
}

// Reader is read-only access to the legacy site-location schema.
type Reader struct {
	db *sqlx.DB
}

func NewReader(db *sqlx.DB) *Reader {
	return &Reader{db: db}
}

func (r *Reader) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping legacy store")
	}
	return nil
}

func (r *Reader) ListNodes(ctx context.Context) ([]geography.LegacyNode, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(nodeColumns...).From(siteLocationTable).OrderBy("sit_loc_id").Asc()
	query, args := sb.Build()

	var rows []nodeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "list site locations")
	}

	out := make([]geography.LegacyNode, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainNode(row))
	}
	return out, nil
}

func (r *Reader) Inventory(ctx context.Context) (geography.Inventory, error) {
	var inv geography.Inventory
	counts := []struct {
		table string
		dst   *int64
	}{
		{siteTable, &inv.Sites},
		{siteLocationTable, &inv.SiteLocations},
		{siteLocationItemTable, &inv.SiteLocationItems},
	}
	for _, c := range counts {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("COUNT(*)").From(c.table)
		query, args := sb.Build()
		if err := r.db.GetContext(ctx, c.dst, query, args...); err != nil {
			return geography.Inventory{}, errors.Wrapf(err, "count %s", c.table)
		}
	}
	return inv, nil
}

func toDomainNode(row nodeRow) geography.LegacyNode {
	n := geography.LegacyNode{
		ID:          row.ID,
		ExternalKey: row.WebKey.String,
		Text:        row.DefaultText.String,
		CountryISO2: row.CountryISO2.String,
	}
	if row.ParentID.Valid {
		n.ParentID = row.ParentID.Int64
	}
	if row.MapLat.Valid {
		v := row.MapLat.Float64
		n.Latitude = &v
	}
	if row.MapLong.Valid {
		v := row.MapLong.Float64
		n.Longitude = &v
	}
	if row.GoogleZoom.Valid {
		v := int(row.GoogleZoom.Int32)
		n.MapZoom = &v
	}
	return n
}
