package persistence_test

import (
	"context"
	"embed"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
	"github.com/iota-uz/geo-migrate/modules/geography/infrastructure/persistence"
	"github.com/iota-uz/geo-migrate/pkg/itf"
)

//go:embed testdata/migrations/*.sql
var testMigrations embed.FS

func setupGatewayDB(tb testing.TB) (context.Context, *pgxpool.Pool) {
	tb.Helper()

	itf.RequirePostgres(tb)
	pool := itf.CreateDB(tb, tb.Name())
	itf.MigrateUp(tb, pool, testMigrations, "testdata/migrations")
	return context.Background(), pool
}

func newRow(key, name string, parent uuid.UUID, region *string) geography.Geography {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return geography.Geography{
		ID:          uuid.New(),
		ParentID:    &parent,
		ExternalKey: geography.StringPtr(key),
		CountryISO:  "USA",
		CountryName: "United States",
		RegionName:  region,
		Name:        name,
		SourceKey:   geography.StringPtr(""),
		Status:      geography.StatusActive,
		Type:        geography.TypePublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestGateway_GeographyRoundTrip(t *testing.T) {
	ctx, pool := setupGatewayDB(t)
	gw := persistence.NewGateway(pool)
	require.NoError(t, gw.Ping(ctx))

	root := newRow("USA", "United States", geography.RootSentinelID, nil)
	zoom := 4
	root.MapZoom = &zoom
	affected, err := gw.InsertBatch(ctx, []geography.Geography{root})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	got, err := gw.GetByExternalKey(ctx, "usa")
	require.NoError(t, err)
	require.Equal(t, root.ID, got.ID)
	require.True(t, got.IsTopLevel())
	require.NotNil(t, got.MapZoom)
	require.Equal(t, 4, *got.MapZoom)
	require.Nil(t, got.RegionName)

	_, err = gw.GetByExternalKey(ctx, "nope")
	require.ErrorIs(t, err, geography.ErrNotFound)

	keys, err := gw.ExternalKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"USA"}, keys)

	got.Name = "United States of America"
	got.UpdatedAt = time.Now().UTC()
	require.NoError(t, gw.Update(ctx, got))

	all, err := gw.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "United States of America", all[0].Name)
	require.Equal(t, "USA", all[0].Key())
}

func TestGateway_InsertBatchRollsBackOnDuplicate(t *testing.T) {
	ctx, pool := setupGatewayDB(t)
	gw := persistence.NewGateway(pool)

	_, err := gw.InsertBatch(ctx, []geography.Geography{newRow("ca", "California", geography.RootSentinelID, nil)})
	require.NoError(t, err)

	_, err = gw.InsertBatch(ctx, []geography.Geography{
		newRow("tx", "Texas", geography.RootSentinelID, nil),
		newRow("CA", "California", geography.RootSentinelID, nil),
	})
	require.ErrorIs(t, err, geography.ErrDuplicateKey)

	all, err := gw.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestGateway_ClearCity(t *testing.T) {
	ctx, pool := setupGatewayDB(t)
	gw := persistence.NewGateway(pool)

	a := newRow("a", "A", geography.RootSentinelID, nil)
	a.City = geography.StringPtr("Austin")
	b := newRow("b", "B", geography.RootSentinelID, nil)
	_, err := gw.InsertBatch(ctx, []geography.Geography{a, b})
	require.NoError(t, err)

	withCity, err := gw.ListWithCity(ctx)
	require.NoError(t, err)
	require.Len(t, withCity, 1)

	n, err := gw.ClearCity(ctx, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	withCity, err = gw.ListWithCity(ctx)
	require.NoError(t, err)
	require.Empty(t, withCity)
}

func TestGateway_LocationsAndLinks(t *testing.T) {
	ctx, pool := setupGatewayDB(t)
	gw := persistence.NewGateway(pool)

	state := newRow("tx", "Texas", geography.RootSentinelID, geography.StringPtr("Texas"))
	_, err := gw.InsertBatch(ctx, []geography.Geography{state})
	require.NoError(t, err)

	domestic, foreign := uuid.New(), uuid.New()
	_, err = pool.Exec(ctx, `
	INSERT INTO ent_location (location_id, name, geo_region_name, geo_country_iso, created_at)
	VALUES ($1, 'Austin', 'Texas', 'USA', now()), ($2, 'Toronto', 'Ontario', 'CAN', now() + interval '1 second')`,
		domestic, foreign)
	require.NoError(t, err)

	all, err := gw.ListLocations(ctx, geography.LocationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, domestic, all[0].ID)

	intl, err := gw.ListLocations(ctx, geography.LocationFilter{ExcludeCountryISO: "USA"})
	require.NoError(t, err)
	require.Len(t, intl, 1)
	require.Equal(t, foreign, intl[0].ID)

	now := time.Now().UTC()
	link := geography.Link{
		ID:          uuid.New(),
		GeographyID: state.ID,
		LocationID:  domestic,
		Status:      geography.StatusActive,
		Type:        geography.TypeSite,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, gw.InsertLink(ctx, link))

	links, err := gw.ListLinks(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, domestic, links[0].LocationID)
	require.Nil(t, links[0].DateBegin)
	require.Equal(t, 0, links[0].SortOrder)
}
