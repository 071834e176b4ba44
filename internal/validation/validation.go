// Package validation provides centralized input validation for tremor.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/xtxerr/tremor/internal/errors"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for identifiers.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
	AllowSlashes bool
	AllowColons  bool
}

// DefaultNameRules returns the default rules for identifiers such as damage
// state names and GSIM names.
func DefaultNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    false,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// AssetIDRules returns rules for asset references.
func AssetIDRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
		AllowColons:  true,
	}
}

// TaxonomyRules returns rules for taxonomy strings. GEM taxonomy strings use
// slashes and colons as attribute separators ("CR/LFINF+DUL/H:2").
func TaxonomyRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
		AllowSlashes: true,
		AllowColons:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required: %w", rules.MinLength, errors.ErrInvalidName)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed: %w", rules.MaxLength, errors.ErrInvalidName)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name cannot be '.' or '..': %w", errors.ErrInvalidName)
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d: %w", i, errors.ErrInvalidName)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d: %w", r, i, errors.ErrInvalidName)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	case '/', '+':
		return rules.AllowSlashes
	case ':':
		return rules.AllowColons
	}
	return false
}

// ValidateAssetID validates an asset reference.
func ValidateAssetID(id string) error {
	if err := ValidateName(id, AssetIDRules()); err != nil {
		return fmt.Errorf("asset id %q: %w", id, err)
	}
	return nil
}

// ValidateTaxonomy validates a taxonomy string.
func ValidateTaxonomy(taxonomy string) error {
	if err := ValidateName(taxonomy, TaxonomyRules()); err != nil {
		return fmt.Errorf("taxonomy %q: %w", taxonomy, err)
	}
	return nil
}

// ValidateDamageStates checks damage state names are valid and unique.
// At least two states are required (no damage plus one limit state).
func ValidateDamageStates(states []string) error {
	if len(states) < 2 {
		return fmt.Errorf("need at least 2 damage states, got %d: %w", len(states), errors.ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(states))
	for _, s := range states {
		if err := ValidateName(s, DefaultNameRules()); err != nil {
			return fmt.Errorf("damage state %q: %w", s, err)
		}
		if seen[s] {
			return errors.NewDuplicate("damage state", s)
		}
		seen[s] = true
	}
	return nil
}

// =============================================================================
// Intensity Measure Types
// =============================================================================

// IMT is a parsed intensity measure type.
type IMT struct {
	Name   string
	Period float64 // Only set for SA
}

var imtPattern = regexp.MustCompile(`^([A-Za-z]+)(?:\(([0-9]*\.?[0-9]+)\))?$`)

var knownIMTs = map[string]bool{
	"PGA": true,
	"PGV": true,
	"PGD": true,
	"SA":  true,
	"MMI": true,
	"IA":  true,
	"RSD": true,
}

// ParseIMT parses an intensity measure type string such as "PGA" or "SA(0.2)".
func ParseIMT(s string) (IMT, error) {
	m := imtPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return IMT{}, fmt.Errorf("%q: %w", s, errors.ErrInvalidIMT)
	}

	imt := IMT{Name: strings.ToUpper(m[1])}
	if !knownIMTs[imt.Name] {
		return IMT{}, fmt.Errorf("%q: unknown type %s: %w", s, imt.Name, errors.ErrInvalidIMT)
	}

	switch {
	case imt.Name == "SA" && m[2] == "":
		return IMT{}, fmt.Errorf("%q: SA requires a period: %w", s, errors.ErrInvalidIMT)
	case imt.Name != "SA" && m[2] != "":
		return IMT{}, fmt.Errorf("%q: only SA takes a period: %w", s, errors.ErrInvalidIMT)
	case m[2] != "":
		period, err := strconv.ParseFloat(m[2], 64)
		if err != nil || period <= 0 {
			return IMT{}, fmt.Errorf("%q: invalid period: %w", s, errors.ErrInvalidIMT)
		}
		imt.Period = period
	}

	return imt, nil
}

// String returns the canonical representation of the IMT.
func (i IMT) String() string {
	if i.Name == "SA" {
		return "SA(" + strconv.FormatFloat(i.Period, 'f', -1, 64) + ")"
	}
	return i.Name
}

// CanonicalIMT parses and re-renders an IMT string so that "sa(0.20)" and
// "SA(0.2)" compare equal.
func CanonicalIMT(s string) (string, error) {
	imt, err := ParseIMT(s)
	if err != nil {
		return "", err
	}
	return imt.String(), nil
}

// =============================================================================
// SQL helpers
// =============================================================================

var sqlLikeMetaChars = regexp.MustCompile(`[%_\[\]\\]`)

// EscapeLikePattern escapes special characters in a LIKE pattern.
func EscapeLikePattern(pattern string) string {
	return sqlLikeMetaChars.ReplaceAllStringFunc(pattern, func(s string) string {
		return "\\" + s
	})
}

// SafeLikePrefix creates a safe LIKE prefix pattern.
func SafeLikePrefix(prefix string) string {
	return EscapeLikePattern(prefix) + "%"
}
