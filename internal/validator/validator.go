// Package validator implements pure, deterministic per-field record
// validators. Each function returns an ordered list of human-readable error
// strings, empty iff the input is valid; nothing here touches the network
// or a database.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	maxNameLength  = 500
	maxCityLength  = 100
	maxStateLength = 50
	minYear        = 1800
	maxYear        = 2100
)

var (
	onlySpecialChars = regexp.MustCompile(`^[\s\W]+$`)
	zipCodePattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

	// dateFormats mirrors the enumerated set loaders are allowed to emit;
	// ValidateDate tries each in order and stops at the first match.
	dateFormats = []string{
		"2006-01-02",
		"01/02/2006",
		"02/01/2006",
		"20060102",
	}
)

// ValidateName checks a non-empty display name (company, person, facility)
// against the shared length and character-content rules.
func ValidateName(name string) []string {
	var errs []string

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return []string{"name is empty"}
	}
	if len(name) > maxNameLength {
		errs = append(errs, fmt.Sprintf("name too long (%d chars, max %d)", len(name), maxNameLength))
	}
	if onlySpecialChars.MatchString(name) {
		errs = append(errs, "name contains only special characters")
	}
	return errs
}

// ValidateDate checks dateStr against the enumerated format set and the
// plausible year range. An empty dateStr is valid (the field is optional).
func ValidateDate(dateStr, fieldName string) []string {
	if dateStr == "" {
		return nil
	}

	for _, format := range dateFormats {
		parsed, err := time.Parse(format, dateStr)
		if err != nil {
			continue
		}
		if parsed.Year() < minYear || parsed.Year() > maxYear {
			return []string{fmt.Sprintf("%s has unreasonable year: %d", fieldName, parsed.Year())}
		}
		return nil
	}
	return []string{fmt.Sprintf("%s has invalid format: %s", fieldName, dateStr)}
}

// Address is the subset of an address record field validators inspect.
type Address struct {
	City string
	State string
	Zip  string
}

// ValidateAddress checks city length, state code length, and US zip format.
func ValidateAddress(addr Address) []string {
	var errs []string

	if addr.City != "" && len(addr.City) > maxCityLength {
		errs = append(errs, fmt.Sprintf("city name too long (%d chars)", len(addr.City)))
	}
	if addr.State != "" && len(addr.State) > 2 && len(addr.State) > maxStateLength {
		errs = append(errs, fmt.Sprintf("state value too long (%d chars)", len(addr.State)))
	}
	if addr.Zip != "" && !zipCodePattern.MatchString(addr.Zip) {
		errs = append(errs, fmt.Sprintf("invalid zip code format: %s", addr.Zip))
	}
	return errs
}

// ValidateCoordinates checks a [longitude, latitude] pair is within range.
// A nil or empty slice is valid (coordinates are optional).
func ValidateCoordinates(coords []float64) []string {
	if len(coords) == 0 {
		return nil
	}
	if len(coords) != 2 {
		return []string{fmt.Sprintf("coordinates must have 2 values, got %d", len(coords))}
	}

	lon, lat := coords[0], coords[1]
	var errs []string
	if lon < -180 || lon > 180 {
		errs = append(errs, fmt.Sprintf("invalid longitude: %v", lon))
	}
	if lat < -90 || lat > 90 {
		errs = append(errs, fmt.Sprintf("invalid latitude: %v", lat))
	}
	return errs
}

// Sanitize strips NUL bytes, trims surrounding whitespace, and truncates to
// maxLength.
func Sanitize(value string, maxLength int) string {
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, "\x00", "")
	value = strings.TrimSpace(value)
	if len(value) > maxLength {
		value = value[:maxLength]
	}
	return value
}
