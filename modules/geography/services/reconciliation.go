package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

// ReconciliationService copies the legacy hierarchy into ent_geography. Each
// pass takes the keys already queued by earlier passes of the run and returns
// the set extended with the keys it persisted.
type ReconciliationService struct {
	target    geography.GeographyStore
	countries geography.CountryResolver
}

func NewReconciliationService(target geography.GeographyStore, countries geography.CountryResolver) *ReconciliationService {
	return &ReconciliationService{target: target, countries: countries}
}

// ReconcileRoots inserts a geography under RootSentinelID for every
// top-level legacy node whose key is not yet known.
func (s *ReconciliationService) ReconcileRoots(ctx context.Context, nodes []geography.LegacyNode, keys geography.KeySet) (*PhaseReport, geography.KeySet) {
	report := newPhaseReport(PhaseRoots)
	defer func() { logPhaseSummary(ctx, report) }()

	pending := cloneKeys(keys)
	persisted, err := s.persistedKeys(ctx)
	if err != nil {
		report.fail(err)
		return report.finish(), pending
	}

	candidates := filterNodes(nodes, func(n geography.LegacyNode) bool { return n.IsRoot() })
	batch := make([]geography.Geography, 0, len(candidates))
	now := time.Now().UTC()
	for i, node := range candidates {
		logProgress(ctx, PhaseRoots, i+1, len(candidates), nodeFields(node))

		key := strings.TrimSpace(node.ExternalKey)
		switch {
		case key == "":
			report.skipped(SkipMissingKey)
			continue
		case persisted.Has(key):
			report.skipped(SkipAlreadyExists)
			continue
		case pending.Has(key):
			report.skipped(SkipDuplicateInBatch)
			continue
		}

		codes := s.resolve(node.Text)
		parent := geography.RootSentinelID
		batch = append(batch, geography.Geography{
			ID:          uuid.New(),
			ParentID:    &parent,
			ExternalKey: geography.StringPtr(key),
			CountryISO:  codes.ISO3,
			CountryName: node.Text,
			RegionISO:   geography.StringPtr(codes.ISO2),
			Latitude:    node.Latitude,
			Longitude:   node.Longitude,
			MapZoom:     node.MapZoom,
			Name:        node.Text,
			SourceKey:   geography.StringPtr(""),
			Status:      geography.StatusActive,
			Type:        geography.TypePublic,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		pending.Add(key)
	}

	if !s.flush(ctx, report, batch) {
		return report.finish(), cloneKeys(keys)
	}
	return report.finish(), pending
}

// ReconcileChildren inserts or refreshes a geography for every non-root
// legacy node whose parent already has a persisted geography. Nodes whose
// parent geography is created in this same pass are left for the next run.
func (s *ReconciliationService) ReconcileChildren(ctx context.Context, nodes []geography.LegacyNode, keys geography.KeySet) (*PhaseReport, geography.KeySet) {
	report := newPhaseReport(PhaseChildren)
	defer func() { logPhaseSummary(ctx, report) }()

	pending := cloneKeys(keys)
	existing, err := s.target.List(ctx)
	if err != nil {
		report.fail(err)
		return report.finish(), pending
	}
	byKey := indexByKey(existing)
	byLegacyID := make(map[int64]geography.LegacyNode, len(nodes))
	for _, n := range nodes {
		byLegacyID[n.ID] = n
	}

	candidates := filterNodes(nodes, func(n geography.LegacyNode) bool { return !n.IsRoot() })
	batch := make([]geography.Geography, 0, len(candidates))
	now := time.Now().UTC()
	for i, node := range candidates {
		fields := nodeFields(node)
		logProgress(ctx, PhaseChildren, i+1, len(candidates), fields)

		key := strings.TrimSpace(node.ExternalKey)
		if key == "" {
			report.skipped(SkipMissingKey)
			continue
		}
		parent, ok := byLegacyID[node.ParentID]
		if !ok {
			fields["parent_legacy_id"] = node.ParentID
			logWithFields(ctx, logrus.WarnLevel, "legacy parent missing", fields)
			report.skipped(SkipMissingParent)
			continue
		}
		parentGeo, ok := byKey[geography.NormalizeKey(parent.ExternalKey)]
		if !ok {
			fields["parent_key"] = parent.ExternalKey
			logWithFields(ctx, logrus.WarnLevel, "parent geography missing", fields)
			report.skipped(SkipMissingParentGeography)
			continue
		}

		codes := s.resolve(node.Text)
		if current, ok := byKey[geography.NormalizeKey(key)]; ok {
			current.CountryISO = codes.ISO3
			current.RegionISO = geography.StringPtr(codes.ISO2)
			current.Name = node.Text
			current.CountryName = parent.Text
			current.UpdatedAt = now
			if err := s.target.Update(ctx, current); err != nil {
				fields["error"] = err.Error()
				logWithFields(ctx, logrus.ErrorLevel, "update geography failed", fields)
				report.skipped(SkipUpdateFailed)
				continue
			}
			byKey[geography.NormalizeKey(key)] = current
			report.RowsAffected++
			report.updated(current.ID)
			continue
		}
		if pending.Has(key) {
			report.skipped(SkipDuplicateInBatch)
			continue
		}

		parentID := parentGeo.ID
		batch = append(batch, geography.Geography{
			ID:          uuid.New(),
			ParentID:    &parentID,
			ExternalKey: geography.StringPtr(key),
			CountryISO:  codes.ISO3,
			CountryName: parent.Text,
			RegionISO:   geography.StringPtr(codes.ISO2),
			RegionName:  geography.StringPtr(node.Text),
			Latitude:    node.Latitude,
			Longitude:   node.Longitude,
			MapZoom:     node.MapZoom,
			Name:        node.Text,
			SourceKey:   geography.StringPtr(""),
			Status:      geography.StatusActive,
			Type:        geography.TypePublic,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		pending.Add(key)
	}

	if !s.flush(ctx, report, batch) {
		return report.finish(), cloneKeys(keys)
	}
	return report.finish(), pending
}

// flush writes the accumulated batch and reports whether it committed. A
// failed batch marks every queued row as insert_failed.
func (s *ReconciliationService) flush(ctx context.Context, report *PhaseReport, batch []geography.Geography) bool {
	if len(batch) == 0 {
		return true
	}
	affected, err := s.target.InsertBatch(ctx, batch)
	if err != nil {
		for range batch {
			report.skipped(SkipInsertFailed)
		}
		report.fail(err)
		return false
	}
	report.RowsAffected += affected
	for _, g := range batch {
		report.created(g.ID)
	}
	return true
}

func (s *ReconciliationService) persistedKeys(ctx context.Context) (geography.KeySet, error) {
	keys, err := s.target.ExternalKeys(ctx)
	if err != nil {
		return nil, err
	}
	return geography.NewKeySet(keys...), nil
}

func (s *ReconciliationService) resolve(text string) geography.RegionCodes {
	codes, ok := s.countries.Resolve(text)
	if !ok {
		return geography.RegionCodes{}
	}
	return codes
}

func filterNodes(nodes []geography.LegacyNode, keep func(geography.LegacyNode) bool) []geography.LegacyNode {
	out := make([]geography.LegacyNode, 0, len(nodes))
	for _, n := range nodes {
		if n.HasText() && keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// indexByKey keeps the first row per normalized key; rows arrive ordered by
// created_at, id.
func indexByKey(rows []geography.Geography) map[string]geography.Geography {
	out := make(map[string]geography.Geography, len(rows))
	for _, g := range rows {
		k := geography.NormalizeKey(g.Key())
		if k == "" {
			continue
		}
		if _, ok := out[k]; !ok {
			out[k] = g
		}
	}
	return out
}

func cloneKeys(keys geography.KeySet) geography.KeySet {
	out := make(geography.KeySet, len(keys))
	for k := range keys {
		out[k] = struct{}{}
	}
	return out
}

func nodeFields(n geography.LegacyNode) logrus.Fields {
	return logrus.Fields{
		"legacy_id":    n.ID,
		"external_key": n.ExternalKey,
		"text":         n.Text,
	}
}
