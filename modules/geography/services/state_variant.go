package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

type StateVariantConfig struct {
	RootKey     string
	CountryName string
	CountryISO  string
	// WriteCity stores the region text in geo_city instead of leaving it null.
	WriteCity bool
}

func DefaultStateVariantConfig() StateVariantConfig {
	return StateVariantConfig{
		RootKey:     "usa",
		CountryName: "United States",
		CountryISO:  "USA",
	}
}

// StateVariantService places the legacy children of one country node under
// that country's geography, coding each with its state abbreviation. It
// reads persisted state on its own and does not depend on earlier passes.
type StateVariantService struct {
	target geography.GeographyStore
	states geography.StateCodeLookup
	cfg    StateVariantConfig
}

func NewStateVariantService(target geography.GeographyStore, states geography.StateCodeLookup, cfg StateVariantConfig) *StateVariantService {
	def := DefaultStateVariantConfig()
	if strings.TrimSpace(cfg.RootKey) == "" {
		cfg.RootKey = def.RootKey
	}
	if cfg.CountryName == "" {
		cfg.CountryName = def.CountryName
	}
	if cfg.CountryISO == "" {
		cfg.CountryISO = def.CountryISO
	}
	return &StateVariantService{target: target, states: states, cfg: cfg}
}

// Run returns geography.ErrRequiredRootMissing when no geography carries the
// configured root key; every other failure lands on the report.
func (s *StateVariantService) Run(ctx context.Context, nodes []geography.LegacyNode) (*PhaseReport, error) {
	report := newPhaseReport(PhaseStates)
	defer func() { logPhaseSummary(ctx, report) }()

	root, err := s.target.GetByExternalKey(ctx, s.cfg.RootKey)
	if err != nil {
		if errors.Is(err, geography.ErrNotFound) {
			report.fail(err)
			return report.finish(), errors.Wrapf(geography.ErrRequiredRootMissing, "root key %q", s.cfg.RootKey)
		}
		report.fail(err)
		return report.finish(), nil
	}

	existing, err := s.target.List(ctx)
	if err != nil {
		report.fail(err)
		return report.finish(), nil
	}
	byKey := indexByKey(existing)

	candidates := s.candidates(nodes)
	if len(candidates) == 0 {
		logWithFields(ctx, logrus.WarnLevel, "no legacy rows under state root", logrus.Fields{
			"phase":    PhaseStates,
			"root_key": s.cfg.RootKey,
		})
	}

	pending := geography.NewKeySet()
	batch := make([]geography.Geography, 0, len(candidates))
	now := time.Now().UTC()
	for i, node := range candidates {
		fields := nodeFields(node)
		logProgress(ctx, PhaseStates, i+1, len(candidates), fields)

		key := strings.TrimSpace(node.ExternalKey)
		if key == "" {
			report.skipped(SkipMissingKey)
			continue
		}
		regionISO := s.regionISO(node.Text)

		if current, ok := byKey[geography.NormalizeKey(key)]; ok {
			current.CountryISO = s.cfg.CountryISO
			current.CountryName = s.cfg.CountryName
			current.RegionISO = regionISO
			current.Name = node.Text
			if s.cfg.WriteCity {
				current.City = geography.StringPtr(node.Text)
			}
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

		var city *string
		if s.cfg.WriteCity {
			city = geography.StringPtr(node.Text)
		}
		parentID := root.ID
		batch = append(batch, geography.Geography{
			ID:          uuid.New(),
			ParentID:    &parentID,
			ExternalKey: geography.StringPtr(key),
			City:        city,
			CountryISO:  s.cfg.CountryISO,
			CountryName: s.cfg.CountryName,
			RegionISO:   regionISO,
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

	if len(batch) > 0 {
		affected, err := s.target.InsertBatch(ctx, batch)
		if err != nil {
			for range batch {
				report.skipped(SkipInsertFailed)
			}
			report.fail(err)
			return report.finish(), nil
		}
		report.RowsAffected += affected
		for _, g := range batch {
			report.created(g.ID)
		}
	}
	return report.finish(), nil
}

// candidates are the legacy rows whose parent is the legacy node carrying the
// root key.
func (s *StateVariantService) candidates(nodes []geography.LegacyNode) []geography.LegacyNode {
	rootKey := geography.NormalizeKey(s.cfg.RootKey)
	parents := map[int64]struct{}{}
	for _, n := range nodes {
		if geography.NormalizeKey(n.ExternalKey) == rootKey {
			parents[n.ID] = struct{}{}
		}
	}
	return filterNodes(nodes, func(n geography.LegacyNode) bool {
		_, ok := parents[n.ParentID]
		return ok && !n.IsRoot()
	})
}

func (s *StateVariantService) regionISO(text string) *string {
	code, ok := s.states.StateCode(text)
	if !ok {
		return nil
	}
	return geography.StringPtr(code)
}
