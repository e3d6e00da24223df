package waypoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rallynav/pkg/geo"
	"rallynav/pkg/model"
	"rallynav/pkg/route"
)

// Builder is the part of the route engine the interpreter drives.
type Builder interface {
	BeginRebuild() error
	ApplyModifier(token string) bool
	AppendNoFixLeg(token string) (route.ParseOutcome, error)
	AppendFixLeg(name string, loc geo.Location) error
	AppendRallyFixLeg(token, fix string, loc geo.Location) error
	ReportMissingWaypoint(name string)
	FinishRebuild()
}

// Lookup resolves a fix name.
type Lookup interface {
	Lookup(ctx context.Context, name string) (model.Waypoint, error)
}

// Interpreter turns route text into legs. Tokens are handled strictly in
// order; a lookup completes before the next token is looked at.
type Interpreter struct {
	b      Builder
	lookup Lookup
}

// NewInterpreter creates an interpreter feeding b.
func NewInterpreter(b Builder, lookup Lookup) *Interpreter {
	return &Interpreter{b: b, lookup: lookup}
}

// Submit replaces the route with the legs described by text. Unknown fixes
// and malformed maneuvers are reported through the engine's warnings and
// skipped. A cancelled context or a store failure ends the rebuild early
// with the legs appended so far.
func (in *Interpreter) Submit(ctx context.Context, text string) error {
	if err := in.b.BeginRebuild(); err != nil {
		return err
	}
	defer in.b.FinishRebuild()

	tokens := strings.Fields(strings.ToUpper(strings.TrimSpace(text)))
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := in.token(ctx, tok); err != nil {
			return err
		}
	}
	slog.Debug("Route text interpreted", "tokens", len(tokens))
	return nil
}

func (in *Interpreter) token(ctx context.Context, tok string) error {
	switch route.Classify(tok) {
	case route.TokenModifier:
		in.b.ApplyModifier(tok)

	case route.TokenManeuver:
		if _, err := in.b.AppendNoFixLeg(tok); err != nil {
			// Already recorded as an engine warning
			slog.Debug("Maneuver skipped", "token", tok, "error", err)
		}

	case route.TokenRallyFix:
		name, _ := route.RallyFixName(tok)
		w, ok, err := in.resolve(ctx, name)
		if err != nil || !ok {
			return err
		}
		if err := in.b.AppendRallyFixLeg(tok, w.Name, geo.Location{Lat: w.Lat, Lon: w.Lon}); err != nil {
			slog.Debug("Rally fix skipped", "token", tok, "error", err)
		}

	default:
		w, ok, err := in.resolve(ctx, tok)
		if err != nil || !ok {
			return err
		}
		return in.b.AppendFixLeg(w.Name, geo.Location{Lat: w.Lat, Lon: w.Lon})
	}
	return nil
}

// resolve reports unknown names to the engine and returns ok=false for them.
func (in *Interpreter) resolve(ctx context.Context, name string) (model.Waypoint, bool, error) {
	w, err := in.lookup.Lookup(ctx, name)
	if errors.Is(err, ErrNotFound) {
		in.b.ReportMissingWaypoint(name)
		return w, false, nil
	}
	if err != nil {
		return w, false, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	return w, true, nil
}
