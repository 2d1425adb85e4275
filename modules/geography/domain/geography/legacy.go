package geography

import "strings"

// LegacyNode is a row of the legacy site-location hierarchy.
// ParentID 0 marks a root.
type LegacyNode struct {
	ID          int64
	ParentID    int64
	ExternalKey string
	Text        string
	Latitude    *float64
	Longitude   *float64
	MapZoom     *int
	CountryISO2 string
}

func (n LegacyNode) IsRoot() bool { return n.ParentID == 0 }

func (n LegacyNode) HasText() bool { return strings.TrimSpace(n.Text) != "" }

// Inventory counts the legacy sites, site locations and site-location items
// for the connectivity report.
type Inventory struct {
	Sites             int64 `json:"sites"`
	SiteLocations     int64 `json:"site_locations"`
	SiteLocationItems int64 `json:"site_location_items"`
}
