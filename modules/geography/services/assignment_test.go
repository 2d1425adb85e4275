package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
	"github.com/iota-uz/geo-migrate/modules/geography/services"
	"github.com/iota-uz/geo-migrate/pkg/logging"
)

func regionGeography(region string) geography.Geography {
	parent := geography.RootSentinelID
	return geography.Geography{
		ID:          uuid.New(),
		ParentID:    &parent,
		ExternalKey: geography.StringPtr("k-" + region),
		RegionName:  geography.StringPtr(region),
		Name:        region,
		Status:      geography.StatusActive,
		Type:        geography.TypePublic,
	}
}

func newAssignment(target *fakeTarget, cfg services.AssignmentConfig) *services.AssignmentService {
	return services.NewAssignmentService(target, target, target, cfg)
}

func TestAssign_NoMatchingGeographyIsSkipped(t *testing.T) {
	target := &fakeTarget{
		geos:      []geography.Geography{regionGeography("Texas")},
		locations: []geography.Location{location("Nevada", "USA")},
	}

	report := newAssignment(target, services.AssignmentConfig{Cap: 10}).Assign(context.Background())
	require.NoError(t, report.Err)
	require.Equal(t, 0, report.Created)
	require.Equal(t, 1, report.Skipped[services.SkipNoGeographyMatch])
	require.Empty(t, target.links)
}

func TestAssign_UnmatchedLocationIsLoggedAsWarning(t *testing.T) {
	target := &fakeTarget{
		geos:      []geography.Geography{regionGeography("Texas")},
		locations: []geography.Location{location("texas", "USA")},
	}
	logger, hook := logrustest.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	ctx := logging.WithLogger(context.Background(), logrus.NewEntry(logger))

	report := newAssignment(target, services.AssignmentConfig{Cap: 10}).Assign(ctx)
	require.Equal(t, 1, report.Skipped[services.SkipNoGeographyMatch])

	var found *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "no geography for region" {
			found = e
		}
	}
	require.NotNil(t, found)
	require.Equal(t, logrus.WarnLevel, found.Level)
	require.Equal(t, "texas", found.Data["region_name"])
	require.Equal(t, "Texas", found.Data["closest_region"])
}

func TestAssign_CapReachedOnLastLocation(t *testing.T) {
	target := &fakeTarget{geos: []geography.Geography{regionGeography("Texas")}}
	for i := 0; i < 2; i++ {
		target.locations = append(target.locations, location("Texas", "USA"))
	}

	report := newAssignment(target, services.AssignmentConfig{Cap: 2}).Assign(context.Background())
	require.Equal(t, 2, report.Created)
	require.True(t, report.CapReached)

	under := &fakeTarget{
		geos:      []geography.Geography{regionGeography("Texas")},
		locations: []geography.Location{location("Texas", "USA")},
	}
	report = newAssignment(under, services.AssignmentConfig{Cap: 2}).Assign(context.Background())
	require.Equal(t, 1, report.Created)
	require.False(t, report.CapReached)
}

func TestAssign_CapCountsSuccessfulInserts(t *testing.T) {
	target := &fakeTarget{geos: []geography.Geography{regionGeography("Texas")}}
	for i := 0; i < 5; i++ {
		target.locations = append(target.locations, location("Texas", "USA"))
	}
	target.linkErr = map[uuid.UUID]error{target.locations[1].ID: errBoom}

	before := counterValue(t, "geomigrate_links_inserted_total", nil)
	report := newAssignment(target, services.AssignmentConfig{Cap: 3}).Assign(context.Background())
	require.Equal(t, 3, report.Created)
	require.Equal(t, 1, report.Skipped[services.SkipInsertFailed])
	require.True(t, report.CapReached)
	require.Len(t, target.links, 3)
	require.Equal(t, before+3, counterValue(t, "geomigrate_links_inserted_total", nil))

	linked := map[uuid.UUID]bool{}
	for _, l := range target.links {
		linked[l.LocationID] = true
	}
	require.False(t, linked[target.locations[1].ID])
	require.True(t, linked[target.locations[3].ID])
	require.False(t, linked[target.locations[4].ID])
}

func TestAssign_ExactlyCapLinksWhenEligibleExceedsCap(t *testing.T) {
	target := &fakeTarget{geos: []geography.Geography{regionGeography("Ontario")}}
	for i := 0; i < 7; i++ {
		target.locations = append(target.locations, location("Ontario", "CAN"))
	}

	report := newAssignment(target, services.AssignmentConfig{Cap: 4}).Assign(context.Background())
	require.Equal(t, 4, report.Created)
	require.Len(t, target.links, 4)

	again := newAssignment(target, services.AssignmentConfig{Cap: 4}).Assign(context.Background())
	require.Equal(t, 3, again.Created)
	require.Equal(t, 4, again.Skipped[services.SkipLinkExists])
	require.Len(t, target.links, 7)
}

func TestAssign_FirstGeographyByOrderWins(t *testing.T) {
	first, second := regionGeography("Texas"), regionGeography("Texas")
	target := &fakeTarget{
		geos:      []geography.Geography{first, second},
		locations: []geography.Location{location("Texas", "USA")},
	}

	newAssignment(target, services.AssignmentConfig{}).Assign(context.Background())
	require.Len(t, target.links, 1)
	require.Equal(t, first.ID, target.links[0].GeographyID)
	require.Equal(t, geography.TypeSite, target.links[0].Type)
	require.Equal(t, geography.StatusActive, target.links[0].Status)
	require.Equal(t, 0, target.links[0].SortOrder)
	require.Nil(t, target.links[0].DateBegin)
	require.Nil(t, target.links[0].DateEnd)
}

func TestAssign_RegionMatchIsExact(t *testing.T) {
	target := &fakeTarget{
		geos:      []geography.Geography{regionGeography("Texas")},
		locations: []geography.Location{location("texas", "USA"), location("", "USA")},
	}

	report := newAssignment(target, services.AssignmentConfig{}).Assign(context.Background())
	require.Equal(t, 2, report.Skipped[services.SkipNoGeographyMatch])
	require.Empty(t, target.links)
}

func TestAssign_InternationalOnlyExcludesDomestic(t *testing.T) {
	target := &fakeTarget{
		geos: []geography.Geography{regionGeography("Texas"), regionGeography("Ontario")},
		locations: []geography.Location{
			location("Texas", "USA"),
			location("Ontario", "CAN"),
		},
	}

	report := newAssignment(target, services.AssignmentConfig{InternationalOnly: true}).Assign(context.Background())
	require.Equal(t, 1, report.Created)
	require.Len(t, target.links, 1)
	require.Equal(t, target.locations[1].ID, target.links[0].LocationID)
}

func TestAssign_ExistingLinkForLocationWins(t *testing.T) {
	texas, nevada := regionGeography("Texas"), regionGeography("Nevada")
	loc := location("Texas", "USA")
	target := &fakeTarget{
		geos:      []geography.Geography{texas, nevada},
		locations: []geography.Location{loc},
		links:     []geography.Link{{ID: uuid.New(), GeographyID: nevada.ID, LocationID: loc.ID}},
	}

	report := newAssignment(target, services.AssignmentConfig{}).Assign(context.Background())
	require.Equal(t, 1, report.Skipped[services.SkipLinkExists])
	require.Zero(t, report.Skipped[services.SkipPairExists])
	require.Len(t, target.links, 1)
	require.Equal(t, services.StatusSucceeded, (&services.RunReport{Phases: []*services.PhaseReport{report}}).Status())
}
