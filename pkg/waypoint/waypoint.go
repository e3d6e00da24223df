// Package waypoint resolves route text fix names against the user and FAA
// waypoint tables and feeds the route engine one token at a time.
package waypoint

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"rallynav/pkg/model"
)

const (
	MaxNameLength        = 15
	MaxDescriptionLength = 35
)

var (
	// ErrNotFound is returned when neither table knows the name.
	ErrNotFound = errors.New("waypoint not found")
	// ErrInvalidWaypoint wraps every validation failure of Normalize.
	ErrInvalidWaypoint = errors.New("invalid waypoint")
)

// Names must survive the route text tokenizer: no spaces, no '|'.
var nameRE = regexp.MustCompile(`^[0-9A-Z.]+$`)

// Normalize validates a user waypoint and returns it in stored form:
// trimmed uppercase name, trimmed description, type User.
func Normalize(w model.Waypoint) (model.Waypoint, error) {
	w.Name = strings.ToUpper(strings.TrimSpace(w.Name))
	w.Description = strings.TrimSpace(w.Description)

	switch {
	case w.Name == "":
		return w, fmt.Errorf("%w: name is required", ErrInvalidWaypoint)
	case len(w.Name) > MaxNameLength:
		return w, fmt.Errorf("%w: name %q longer than %d characters", ErrInvalidWaypoint, w.Name, MaxNameLength)
	case !nameRE.MatchString(w.Name):
		return w, fmt.Errorf("%w: name %q may only contain letters, digits and '.'", ErrInvalidWaypoint, w.Name)
	case len(w.Description) > MaxDescriptionLength:
		return w, fmt.Errorf("%w: description longer than %d characters", ErrInvalidWaypoint, MaxDescriptionLength)
	case w.Lat < -90 || w.Lat > 90:
		return w, fmt.Errorf("%w: latitude %f out of range", ErrInvalidWaypoint, w.Lat)
	case w.Lon < -180 || w.Lon > 180:
		return w, fmt.Errorf("%w: longitude %f out of range", ErrInvalidWaypoint, w.Lon)
	}

	w.Type = model.WaypointTypeUser
	w.Source = "user"
	w.State = ""
	return w, nil
}
