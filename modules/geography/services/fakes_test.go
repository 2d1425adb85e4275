package services_test

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

type fakeLegacy struct {
	nodes     []geography.LegacyNode
	inventory geography.Inventory
	pingErr   error
	listErr   error
}

func (f *fakeLegacy) Ping(context.Context) error { return f.pingErr }

func (f *fakeLegacy) ListNodes(context.Context) ([]geography.LegacyNode, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]geography.LegacyNode(nil), f.nodes...), nil
}

func (f *fakeLegacy) Inventory(context.Context) (geography.Inventory, error) {
	return f.inventory, nil
}

// fakeTarget keeps rows in insertion order, standing in for created_at, id.
type fakeTarget struct {
	geos      []geography.Geography
	locations []geography.Location
	links     []geography.Link

	pingErr     error
	batchErr    error
	linkErr     map[uuid.UUID]error
	batchCalls  int
	updateCalls int
}

func (f *fakeTarget) Ping(context.Context) error { return f.pingErr }

func (f *fakeTarget) List(context.Context) ([]geography.Geography, error) {
	return append([]geography.Geography(nil), f.geos...), nil
}

func (f *fakeTarget) ExternalKeys(context.Context) ([]string, error) {
	var out []string
	for _, g := range f.geos {
		if g.ExternalKey != nil {
			out = append(out, *g.ExternalKey)
		}
	}
	return out, nil
}

func (f *fakeTarget) GetByExternalKey(_ context.Context, key string) (geography.Geography, error) {
	for _, g := range f.geos {
		if strings.EqualFold(g.Key(), key) {
			return g, nil
		}
	}
	return geography.Geography{}, geography.ErrNotFound
}

func (f *fakeTarget) InsertBatch(_ context.Context, rows []geography.Geography) (int64, error) {
	f.batchCalls++
	if f.batchErr != nil {
		return 0, f.batchErr
	}
	seen := geography.NewKeySet()
	for _, g := range f.geos {
		seen.Add(g.Key())
	}
	for _, g := range rows {
		if seen.Has(g.Key()) {
			return 0, geography.ErrDuplicateKey
		}
		seen.Add(g.Key())
	}
	f.geos = append(f.geos, rows...)
	return int64(len(rows)), nil
}

func (f *fakeTarget) Update(_ context.Context, g geography.Geography) error {
	f.updateCalls++
	for i := range f.geos {
		if f.geos[i].ID == g.ID {
			f.geos[i].CountryISO = g.CountryISO
			f.geos[i].CountryName = g.CountryName
			f.geos[i].RegionISO = g.RegionISO
			f.geos[i].Name = g.Name
			f.geos[i].City = g.City
			f.geos[i].UpdatedAt = g.UpdatedAt
			return nil
		}
	}
	return geography.ErrNotFound
}

func (f *fakeTarget) ListWithCity(context.Context) ([]geography.Geography, error) {
	var out []geography.Geography
	for _, g := range f.geos {
		if g.City != nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeTarget) ClearCity(_ context.Context, ids []uuid.UUID) (int64, error) {
	want := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var n int64
	for i := range f.geos {
		if _, ok := want[f.geos[i].ID]; ok && f.geos[i].City != nil {
			f.geos[i].City = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeTarget) ListLocations(_ context.Context, filter geography.LocationFilter) ([]geography.Location, error) {
	var out []geography.Location
	for _, l := range f.locations {
		if filter.ExcludeCountryISO != "" && l.CountryISO == filter.ExcludeCountryISO {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeTarget) ListLinks(context.Context) ([]geography.Link, error) {
	return append([]geography.Link(nil), f.links...), nil
}

func (f *fakeTarget) InsertLink(_ context.Context, l geography.Link) error {
	if err := f.linkErr[l.LocationID]; err != nil {
		return err
	}
	f.links = append(f.links, l)
	return nil
}

func (f *fakeTarget) byKey(key string) (geography.Geography, bool) {
	g, err := f.GetByExternalKey(context.Background(), key)
	return g, err == nil
}

type fakeCountries map[string]geography.RegionCodes

func (f fakeCountries) Resolve(name string) (geography.RegionCodes, bool) {
	c, ok := f[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

type fakeStates map[string]string

func (f fakeStates) StateCode(name string) (string, bool) {
	c, ok := f[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

var errBoom = errors.New("boom")

func defaultCountries() fakeCountries {
	return fakeCountries{
		"united states": {ISO2: "US", ISO3: "USA"},
		"canada":        {ISO2: "CA", ISO3: "CAN"},
		"mexico":        {ISO2: "MX", ISO3: "MEX"},
	}
}

func defaultStates() fakeStates {
	return fakeStates{"california": "CA", "texas": "TX", "nevada": "NV"}
}

func node(id, parent int64, key, text string) geography.LegacyNode {
	return geography.LegacyNode{ID: id, ParentID: parent, ExternalKey: key, Text: text}
}

func location(region, iso string) geography.Location {
	return geography.Location{ID: uuid.New(), Name: region + " office", RegionName: region, CountryISO: iso}
}
