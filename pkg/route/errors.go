package route

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotEnoughLegs = errors.New("route needs at least two legs")
	ErrRunning       = errors.New("not allowed while running")
	ErrNotRunning    = errors.New("not running")
	ErrNoSuchLeg     = errors.New("no such leg")
	ErrRebuilding    = errors.New("route is being rebuilt")
	ErrNotRebuilding = errors.New("no route rebuild in progress")
	ErrInvalidValue  = errors.New("invalid value")
	ErrNoStartLeg    = errors.New("takeoff needs a start leg")
	ErrDuplicateLeg  = errors.New("route already has a start leg")
	ErrUnknownToken  = errors.New("not a maneuver token")
)

// WarningCode identifies a recoverable route problem.
type WarningCode string

const (
	WarnDuplicateStart  WarningCode = "duplicate_start"
	WarnDuplicateStop   WarningCode = "duplicate_stop"
	WarnWindTooStrong   WarningCode = "wind_too_strong"
	WarnClimbTooShort   WarningCode = "climb_too_short"
	WarnNotFound        WarningCode = "waypoint_not_found"
	WarnNoStartLeg      WarningCode = "no_start_leg"
	WarnSecondStart     WarningCode = "second_start_leg"
	WarnDefaultedToken  WarningCode = "defaulted_token"
	WarnStateTransition WarningCode = "state_transition"
)

// Warning is an operator-visible problem that did not stop computation.
type Warning struct {
	Time     time.Time   `json:"time"`
	Code     WarningCode `json:"code"`
	LegIndex int         `json:"leg_index"`
	Message  string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

const maxWarnings = 100
