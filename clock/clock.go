// Package clock resolves IANA timezone names and renders the labels shown on clock roles.
package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimezone is returned when a name cannot be resolved against the zone database.
var ErrInvalidTimezone = errors.New("invalid timezone")

// ParseError describes timezone text a user typed that could not be resolved.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Input == "" {
		return "no timezone given"
	}
	return fmt.Sprintf("'%s' is not a valid timezone", e.Input)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidTimezone
}

// LoadZone resolves user supplied text to a location. The canonical name of
// the zone is the returned location's String().
func LoadZone(text string) (*time.Location, error) {
	name := strings.TrimSpace(text)
	// LoadLocation maps "" to UTC and "Local" to the host zone, neither of
	// which is something a user can meaningfully ask for.
	if name == "" || name == "Local" {
		return nil, &ParseError{Input: name}
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ParseError{Input: name, Err: err}
	}
	return loc, nil
}

// Render formats the label for loc at the given instant, e.g. "America/New_York 09:05".
func Render(loc *time.Location, instant time.Time) string {
	return loc.String() + " " + instant.In(loc).Format("15:04")
}

// RenderName is Render for a stored zone name.
func RenderName(name string, instant time.Time) (string, error) {
	loc, err := LoadZone(name)
	if err != nil {
		return "", fmt.Errorf("render %q: %w", name, err)
	}
	return Render(loc, instant), nil
}
