package geography

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive = "ACTIVE"

	TypePublic = "PUBLIC"
	TypeSite   = "SITE"
)

// RootSentinelID is the parent of every top-level geography. It never names a
// real row; it separates "business root" from "no parent link".
var RootSentinelID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type Geography struct {
	ID          uuid.UUID
	ParentID    *uuid.UUID
	ExternalKey *string
	City        *string
	CountryISO  string
	CountryName string
	RegionISO   *string
	RegionName  *string
	Latitude    *float64
	Longitude   *float64
	MapZoom     *int
	Name        string
	SourceKey   *string
	Status      string
	Type        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the external key or "" when the row has none.
func (g Geography) Key() string {
	if g.ExternalKey == nil {
		return ""
	}
	return *g.ExternalKey
}

func (g Geography) IsTopLevel() bool {
	return g.ParentID != nil && *g.ParentID == RootSentinelID
}

// NormalizeKey folds an external key for case-insensitive comparison.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// KeySet is a case-insensitive set of external keys.
type KeySet map[string]struct{}

func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s KeySet) Add(key string) {
	if n := NormalizeKey(key); n != "" {
		s[n] = struct{}{}
	}
}

func (s KeySet) Has(key string) bool {
	_, ok := s[NormalizeKey(key)]
	return ok
}

func (s KeySet) Len() int { return len(s) }

func StringPtr(v string) *string { return &v }
