package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// OnsetTerm pairs an HPO onset label with its identifier.
type OnsetTerm struct {
	ID    TermID
	Label string
}

// onsetCatalog is the HPO Onset subhierarchy accepted as symbolic ages.
var onsetCatalog = []OnsetTerm{
	{"HP:0003584", "Late onset"},
	{"HP:0003596", "Middle age onset"},
	{"HP:0011462", "Young adult onset"},
	{"HP:0025710", "Late young adult onset"},
	{"HP:0025709", "Intermediate young adult onset"},
	{"HP:0025708", "Early young adult onset"},
	{"HP:0003581", "Adult onset"},
	{"HP:0003621", "Juvenile onset"},
	{"HP:0011463", "Childhood onset"},
	{"HP:0003593", "Infantile onset"},
	{"HP:0003623", "Neonatal onset"},
	{"HP:0003577", "Congenital onset"},
	{"HP:0030674", "Antenatal onset"},
	{"HP:0011460", "Embryonal onset"},
	{"HP:0011461", "Fetal onset"},
	{"HP:0034199", "Late first trimester onset"},
	{"HP:0034198", "Second trimester onset"},
	{"HP:0034197", "Third trimester onset"},
}

var onsetByLabel = func() map[string]OnsetTerm {
	m := make(map[string]OnsetTerm, len(onsetCatalog))
	for _, t := range onsetCatalog {
		m[t.Label] = t
	}
	return m
}()

var (
	iso8601AgePattern     = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?$`)
	gestationalAgePattern = regexp.MustCompile(`^G(\d+)w([0-6])d$`)
)

// OnsetTerms returns a copy of the onset catalog in HPO order.
func OnsetTerms() []OnsetTerm {
	out := make([]OnsetTerm, len(onsetCatalog))
	copy(out, onsetCatalog)
	return out
}

// IsOnsetLabel reports whether s is exactly one of the catalog labels.
func IsOnsetLabel(s string) bool {
	_, ok := onsetByLabel[s]
	return ok
}

// OnsetTermFor returns the catalog entry for an onset label.
func OnsetTermFor(label string) (OnsetTerm, bool) {
	t, ok := onsetByLabel[label]
	return t, ok
}

// IsISO8601Age reports whether s is a duration such as P2Y, P3M or P1Y2M10D.
// The bare designator "P" carries no information and is rejected.
func IsISO8601Age(s string) bool {
	return s != "P" && iso8601AgePattern.MatchString(s)
}

// IsGestationalAge reports whether s is a gestational age such as G32w3d.
func IsGestationalAge(s string) bool {
	return gestationalAgePattern.MatchString(s)
}

// IsAgeString reports whether s is an onset label, an ISO 8601 duration or a
// gestational age.
func IsAgeString(s string) bool {
	if s == "" {
		return false
	}
	return IsOnsetLabel(s) || IsISO8601Age(s) || IsGestationalAge(s)
}

// GestationalOnsetLabel maps a gestational age to the trimester onset label.
func GestationalOnsetLabel(s string) (string, error) {
	m := gestationalAgePattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("could not parse gestational age string: '%s'", s)
	}
	weeks, err := strconv.Atoi(m[1])
	if err != nil {
		return "", fmt.Errorf("invalid weeks in gestational age '%s': %w", s, err)
	}
	switch {
	case weeks >= 28:
		return "Third trimester onset", nil
	case weeks >= 14:
		return "Second trimester onset", nil
	case weeks >= 11:
		return "Late first trimester onset", nil
	default:
		return "Embryonal onset", nil
	}
}

var ageSynonyms = map[string]string{
	"antenatal":  "Antenatal onset",
	"neonate":    "Neonatal onset",
	"neonatal":   "Neonatal onset",
	"birth":      "Congenital onset",
	"congenital": "Congenital onset",
	"childhood":  "Childhood onset",
	"adult":      "Adult onset",
	"unk":        "na",
	"na":         "na",
}

var (
	freeYearPattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*y`)
	freeMonthPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*m`)
	freeWeekPattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*w`)
	freeDayPattern   = regexp.MustCompile(`(?i)(\d+)\s*d`)
)

// NormalizeAge converts free-text ages found in legacy sheets ("neonate", "1y9m",
// "2 weeks") to the canonical cell grammar. It returns false when no mapping exists.
func NormalizeAge(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", false
	}
	if IsAgeString(s) {
		return s, true
	}
	if v, ok := ageSynonyms[strings.ToLower(s)]; ok {
		return v, true
	}
	return freeTextToISO(s)
}

func freeTextToISO(s string) (string, bool) {
	capture := func(re *regexp.Regexp) (float64, bool) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(m[1], 64)
		return v, err == nil
	}
	y, hasY := capture(freeYearPattern)
	mo, hasM := capture(freeMonthPattern)
	w, hasW := capture(freeWeekPattern)
	d, hasD := capture(freeDayPattern)
	if !hasY && !hasM && !hasW && !hasD {
		return "", false
	}

	years := int(math.Floor(y))
	months := int(math.Floor(mo)) + int(math.Round((y-math.Floor(y))*12))
	days := int(math.Floor(d)) + int(math.Round(w*7))

	var b strings.Builder
	b.WriteString("P")
	if years > 0 {
		fmt.Fprintf(&b, "%dY", years)
	}
	if months > 0 {
		fmt.Fprintf(&b, "%dM", months)
	}
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if b.Len() == 1 {
		return "", false
	}
	return b.String(), true
}
