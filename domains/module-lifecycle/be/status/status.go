package status

import (
	"fmt"
	"strings"
)

// Operational is the lifecycle state of one tenant-module assignment.
type Operational string

const (
	PendingApproval Operational = "pending_approval"
	Provisioning    Operational = "provisioning"
	Enabled         Operational = "enabled"
	UpToDate        Operational = "up_to_date"
	Error           Operational = "error"
	Suspended       Operational = "suspended"
	Disabled        Operational = "disabled"
	Archived        Operational = "archived"
)

var operationalOrder = []Operational{
	PendingApproval,
	Provisioning,
	Enabled,
	UpToDate,
	Error,
	Suspended,
	Disabled,
	Archived,
}

// All returns every operational status in declaration order.
func All() []Operational {
	return append([]Operational(nil), operationalOrder...)
}

// Valid reports whether s belongs to the closed enumeration.
func (s Operational) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Operational) String() string { return string(s) }

// Active reports whether the module is usable by the tenant.
func (s Operational) Active() bool {
	return s == Enabled || s == UpToDate
}

// Parse converts user or storage input into an Operational status.
func Parse(raw string) (Operational, error) {
	s := Operational(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown operational status %q", raw)
	}
	return s, nil
}

// Health is a coarse quality signal kept next to the lifecycle status.
type Health string

const (
	Healthy  Health = "healthy"
	Warning  Health = "warning"
	Critical Health = "critical"
	Unknown  Health = "unknown"
)

// ParseHealth converts stored health values; anything unrecognised maps to Unknown.
func ParseHealth(raw string) Health {
	switch h := Health(strings.ToLower(strings.TrimSpace(raw))); h {
	case Healthy, Warning, Critical, Unknown:
		return h
	default:
		return Unknown
	}
}

// HealthFor returns the health implied by entering the given status.
// The second value is false when the status leaves health untouched.
func HealthFor(s Operational) (Health, bool) {
	switch s {
	case Enabled, UpToDate:
		return Healthy, true
	case Error:
		return Critical, true
	case Suspended:
		return Warning, true
	case Disabled, Archived:
		return Unknown, true
	default:
		return "", false
	}
}
