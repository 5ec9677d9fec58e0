// Package normalize converts raw spreadsheet values into canonical domain
// values. Every function is stateless and total: any input, including blank
// or garbage text, maps to a defined result, never an error.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"jali/internal/domain"
)

// missing markers the upstream spreadsheet tooling writes for absent cells.
var missingMarkers = map[string]struct{}{
	"":     {},
	"nan":  {},
	"none": {},
	"null": {},
	"n/a":  {},
	"na":   {},
}

// Text trims the raw value and reports whether anything meaningful remains.
// Spreadsheet missing markers ("nan", "none", ...) count as absent.
func Text(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if _, absent := missingMarkers[strings.ToLower(s)]; absent {
		return "", false
	}
	return s, true
}

// Int coerces integer text, tolerating integral float renderings such as
// "12.0" that spreadsheets produce for numeric columns. Malformed input is
// absent, not zero.
func Int(raw string) (int, bool) {
	s, ok := Text(raw)
	if !ok {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

var genderAliases = map[string]domain.Gender{
	"m":      domain.GenderMale,
	"male":   domain.GenderMale,
	"boy":    domain.GenderMale,
	"f":      domain.GenderFemale,
	"female": domain.GenderFemale,
	"girl":   domain.GenderFemale,
}

// Gender maps raw gender text onto the closed vocabulary: alias matches are
// case-insensitive, unmapped non-blank input is Other, blank is Unknown.
func Gender(raw string) domain.Gender {
	s, ok := Text(raw)
	if !ok {
		return domain.GenderUnknown
	}
	if g, ok := genderAliases[strings.ToLower(s)]; ok {
		return g
	}
	return domain.GenderOther
}

var hivAliases = map[string]domain.HIVStatus{
	"positive":             domain.HIVPositive,
	"pos":                  domain.HIVPositive,
	"+":                    domain.HIVPositive,
	"hiv+":                 domain.HIVPositive,
	"hiv positive":         domain.HIVPositive,
	"negative":             domain.HIVNegative,
	"neg":                  domain.HIVNegative,
	"-":                    domain.HIVNegative,
	"hiv-":                 domain.HIVNegative,
	"hiv negative":         domain.HIVNegative,
	"exposed":              domain.HIVExposed,
	"hei":                  domain.HIVExposed,
	"hiv exposed":          domain.HIVExposed,
	"declined":             domain.HIVDeclined,
	"declined to disclose": domain.HIVDeclined,
	"not disclosed":        domain.HIVDeclined,
	"unknown":              domain.HIVUnknown,
}

// HIVStatus maps raw status text onto the closed vocabulary; anything
// unrecognized, including blank, is Unknown.
func HIVStatus(raw string) domain.HIVStatus {
	s, ok := Text(raw)
	if !ok {
		return domain.HIVUnknown
	}
	if st, ok := hivAliases[strings.ToLower(s)]; ok {
		return st
	}
	return domain.HIVUnknown
}

// schoolLevelRules is an ordered rule list; the first matching rule wins.
// Grade-number primary buckets must come before the generic "primary"
// fallback, and explicit out-of-school signals before the secondary bucket
// would swallow "not in school".
var schoolLevelRules = []struct {
	level domain.SchoolLevel
	subs  []string
}{
	{domain.SchoolPrePrimary, []string{"pre", "ecd", "nursery"}},
	{domain.SchoolNotInSchool, []string{"not in school", "none", "out"}},
	{domain.SchoolLowerPrimary, []string{"lower"}},
	{domain.SchoolUpperPrimary, []string{"upper"}},
	{domain.SchoolJuniorSecondary, []string{"junior", "jss"}},
	{domain.SchoolSeniorSecondary, []string{"senior", "sss", "secondary"}},
	{domain.SchoolTertiary, []string{"tertiary", "college", "university"}},
}

var lowerGrades = []string{"1", "2", "3"}
var upperGrades = []string{"4", "5", "6"}

// SchoolLevel classifies free-text school descriptions. Blank input is
// absent (the caller records null); NotApplicable is reserved for non-blank
// text that matches nothing, never for absence. Unlike the other fields,
// "none" here is an explicit not-in-school answer rather than a missing
// marker.
func SchoolLevel(raw string) (domain.SchoolLevel, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, absent := missingMarkers[s]; absent && s != "none" {
		return "", false
	}

	if strings.Contains(s, "primary") {
		for _, g := range lowerGrades {
			if strings.Contains(s, g) {
				return domain.SchoolLowerPrimary, true
			}
		}
		for _, g := range upperGrades {
			if strings.Contains(s, g) {
				return domain.SchoolUpperPrimary, true
			}
		}
	}
	for _, rule := range schoolLevelRules {
		for _, sub := range rule.subs {
			if strings.Contains(s, sub) {
				return rule.level, true
			}
		}
	}
	if strings.Contains(s, "primary") {
		return domain.SchoolLowerPrimary, true
	}
	return domain.SchoolNotApplicable, true
}

// dateLayouts covers the textual date shapes seen across source files. Day
// precedes month in the slashed forms, matching the source locale.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	"02-01-2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02/01/2006 15:04",
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Date parses the textual and numeric date representations found in the
// input. Numeric values are treated as spreadsheet serial days. Unparsable
// or absent input is absent, never an error.
func Date(raw string) (time.Time, bool) {
	s, ok := Text(raw)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		// Plausible serial range: 1950..2100 roughly.
		if serial > 18000 && serial < 75000 {
			return excelEpoch.AddDate(0, 0, int(serial)), true
		}
	}
	return time.Time{}, false
}
