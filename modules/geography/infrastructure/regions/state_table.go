package regions

import "strings"

var stateCodes = map[string]string{
	"ALABAMA":        "AL",
	"ALASKA":         "AK",
	"ARIZONA":        "AZ",
	"ARKANSAS":       "AR",
	"CALIFORNIA":     "CA",
	"COLORADO":       "CO",
	"CONNECTICUT":    "CT",
	"DELAWARE":       "DE",
	"FLORIDA":        "FL",
	"GEORGIA":        "GA",
	"HAWAII":         "HI",
	"IDAHO":          "ID",
	"ILLINOIS":       "IL",
	"INDIANA":        "IN",
	"IOWA":           "IA",
	"KANSAS":         "KS",
	"KENTUCKY":       "KY",
	"LOUISIANA":      "LA",
	"MAINE":          "ME",
	"MARYLAND":       "MD",
	"MASSACHUSETTS":  "MA",
	"MICHIGAN":       "MI",
	"MINNESOTA":      "MN",
	"MISSISSIPPI":    "MS",
	"MISSOURI":       "MO",
	"MONTANA":        "MT",
	"NEBRASKA":       "NE",
	"NEVADA":         "NV",
	"NEW HAMPSHIRE":  "NH",
	"NEW JERSEY":     "NJ",
	"NEW MEXICO":     "NM",
	"NEW YORK":       "NY",
	"NORTH CAROLINA": "NC",
	"NORTH DAKOTA":   "ND",
	"OHIO":           "OH",
	"OKLAHOMA":       "OK",
	"OREGON":         "OR",
	"PENNSYLVANIA":   "PA",
	"RHODE ISLAND":   "RI",
	"SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA":   "SD",
	"TENNESSEE":      "TN",
	"TEXAS":          "TX",
	"UTAH":           "UT",
	"VERMONT":        "VT",
	"VIRGINIA":       "VA",
	"WASHINGTON":     "WA",
	"WEST VIRGINIA":  "WV",
	"WISCONSIN":      "WI",
	"WYOMING":        "WY",

	// territories
	"DISTRICT OF COLUMBIA":     "DC",
	"AMERICAN SAMOA":           "AS",
	"GUAM":                     "GU",
	"NORTHERN MARIANA ISLANDS": "MP",
	"PUERTO RICO":              "PR",
	"US VIRGIN ISLANDS":        "VI",
}

// StateTable resolves US state and territory names to their postal codes.
type StateTable struct{}

func NewStateTable() StateTable { return StateTable{} }

func (StateTable) StateCode(name string) (string, bool) {
	clean := strings.ToUpper(strings.Join(strings.Fields(name), " "))
	// the legacy data stores the literal "NULL" for unknown regions
	if clean == "" || clean == "NULL" {
		return "", false
	}
	code, ok := stateCodes[clean]
	return code, ok
}
