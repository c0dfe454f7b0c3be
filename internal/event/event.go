// Package event defines the kill-event model shared by every feed source.
package event

import (
	"fmt"
	"strings"
	"time"
)

// DeathType classifies how the victim died.
type DeathType string

const (
	DeathSoft        DeathType = "Soft"
	DeathHard        DeathType = "Hard"
	DeathCombat      DeathType = "Combat"
	DeathCollision   DeathType = "Collision"
	DeathCrash       DeathType = "Crash"
	DeathBleedOut    DeathType = "BleedOut"
	DeathSuffocation DeathType = "Suffocation"
	DeathUnknown     DeathType = "Unknown"
)

// Known normalizes a death type, mapping anything unrecognized to Unknown.
func (d DeathType) Known() DeathType {
	switch d {
	case DeathSoft, DeathHard, DeathCombat, DeathCollision, DeathCrash, DeathBleedOut, DeathSuffocation:
		return d
	default:
		return DeathUnknown
	}
}

// Source records which producers have observed an event. The feed store owns
// these flags; producers never set them.
type Source struct {
	Server   bool `json:"server"`
	Local    bool `json:"local"`
	External bool `json:"external"`
}

// Metadata carries feed-managed bookkeeping attached to an event.
type Metadata struct {
	Source Source `json:"source"`
}

// KillEvent is the unit of data flowing through the feed. ID is globally
// unique across both producers: the same id from two sources is the same
// logical event observed twice, not two events.
type KillEvent struct {
	ID               string    `json:"id"`
	Timestamp        string    `json:"timestamp"`
	Killers          []string  `json:"killers"`
	Victims          []string  `json:"victims"`
	DeathType        DeathType `json:"deathType"`
	VehicleType      string    `json:"vehicleType"`
	VehicleModel     string    `json:"vehicleModel"`
	Location         string    `json:"location"`
	Weapon           string    `json:"weapon"`
	DamageType       string    `json:"damageType"`
	IsPlayerInvolved bool      `json:"isPlayerInvolved"`
	Metadata         Metadata  `json:"metadata"`
}

// Validate reports whether the event is well formed enough to enter the feed.
func (e KillEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("event missing id")
	}
	if e.ParsedTime().IsZero() {
		return fmt.Errorf("event %s: unparseable timestamp %q", e.ID, e.Timestamp)
	}
	return nil
}

// ParsedTime returns the timestamp as time.Time when possible.
func (e KillEvent) ParsedTime() time.Time {
	return parseTime(e.Timestamp)
}

// EntityIDs returns the distinct raw entity identifiers the event references,
// in display order. Damage type is descriptive text, not an entity, and is
// excluded.
func (e KillEvent) EntityIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, k := range e.Killers {
		add(k)
	}
	for _, v := range e.Victims {
		add(v)
	}
	add(e.VehicleType)
	add(e.VehicleModel)
	add(e.Weapon)
	add(e.Location)
	return ids
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
