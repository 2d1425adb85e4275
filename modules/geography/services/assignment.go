package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

const DefaultLinkCap = 1000

type AssignmentConfig struct {
	// Cap bounds successful link insertions per run.
	Cap               int
	InternationalOnly bool
	// DomesticCountryISO is excluded when InternationalOnly is set.
	DomesticCountryISO string
}

type locationGeography struct {
	location  uuid.UUID
	geography uuid.UUID
}

// AssignmentService links each unlinked location to the first geography
// whose region name equals the location's region name.
type AssignmentService struct {
	locations geography.LocationReader
	geos      geography.GeographyReader
	links     geography.LinkStore
	cfg       AssignmentConfig
}

func NewAssignmentService(locations geography.LocationReader, geos geography.GeographyReader, links geography.LinkStore, cfg AssignmentConfig) *AssignmentService {
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultLinkCap
	}
	if cfg.DomesticCountryISO == "" {
		cfg.DomesticCountryISO = "USA"
	}
	return &AssignmentService{locations: locations, geos: geos, links: links, cfg: cfg}
}

func (s *AssignmentService) Assign(ctx context.Context) *PhaseReport {
	report := newPhaseReport(PhaseAssign)
	defer func() { logPhaseSummary(ctx, report) }()

	filter := geography.LocationFilter{}
	if s.cfg.InternationalOnly {
		filter.ExcludeCountryISO = s.cfg.DomesticCountryISO
	}
	locations, err := s.locations.ListLocations(ctx, filter)
	if err != nil {
		report.fail(err)
		return report.finish()
	}
	geos, err := s.geos.List(ctx)
	if err != nil {
		report.fail(err)
		return report.finish()
	}
	existing, err := s.links.ListLinks(ctx)
	if err != nil {
		report.fail(err)
		return report.finish()
	}

	byRegion := make(map[string]geography.Geography, len(geos))
	var regionNames []string
	for _, g := range geos {
		if g.RegionName == nil || *g.RegionName == "" {
			continue
		}
		if _, ok := byRegion[*g.RegionName]; !ok {
			byRegion[*g.RegionName] = g
			regionNames = append(regionNames, *g.RegionName)
		}
	}
	linked := make(map[uuid.UUID]struct{}, len(existing))
	pairs := make(map[locationGeography]struct{}, len(existing))
	for _, l := range existing {
		linked[l.LocationID] = struct{}{}
		pairs[locationGeography{location: l.LocationID, geography: l.GeographyID}] = struct{}{}
	}

	inserted := 0
	for i, loc := range locations {
		fields := logrus.Fields{
			"location_id": loc.ID,
			"region_name": loc.RegionName,
		}
		logProgress(ctx, PhaseAssign, i+1, len(locations), fields)

		g, ok := byRegion[loc.RegionName]
		if !ok || loc.RegionName == "" {
			if hint := closestRegion(loc.RegionName, regionNames); hint != "" {
				fields["closest_region"] = hint
			}
			logWithFields(ctx, logrus.WarnLevel, "no geography for region", fields)
			report.skipped(SkipNoGeographyMatch)
			continue
		}
		if _, ok := linked[loc.ID]; ok {
			report.skipped(SkipLinkExists)
			continue
		}
		// Unreachable while a location carries at most one link; kept for
		// stores seeded outside this tool.
		pair := locationGeography{location: loc.ID, geography: g.ID}
		if _, ok := pairs[pair]; ok {
			report.skipped(SkipPairExists)
			continue
		}

		now := time.Now().UTC()
		link := geography.Link{
			ID:          uuid.New(),
			GeographyID: g.ID,
			LocationID:  loc.ID,
			SortOrder:   0,
			Status:      geography.StatusActive,
			Type:        geography.TypeSite,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.links.InsertLink(ctx, link); err != nil {
			fields["geography_id"] = g.ID
			fields["error"] = err.Error()
			logWithFields(ctx, logrus.ErrorLevel, "insert link failed", fields)
			report.skipped(SkipInsertFailed)
			continue
		}
		inserted++
		linked[loc.ID] = struct{}{}
		pairs[pair] = struct{}{}
		report.RowsAffected++
		report.created(link.ID)
		recordLinkInserted()

		if inserted == s.cfg.Cap {
			report.CapReached = true
			logWithFields(ctx, logrus.InfoLevel, "link insert cap reached", logrus.Fields{
				"phase":     PhaseAssign,
				"cap":       s.cfg.Cap,
				"remaining": len(locations) - i - 1,
			})
			break
		}
	}
	return report.finish()
}

// closestRegion suggests a near-miss region name for diagnostics only; the
// match itself stays exact.
func closestRegion(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}
