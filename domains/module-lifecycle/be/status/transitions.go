package status

// transitions is the single source of truth for the lifecycle graph.
// Every state must have an entry, terminal states map to an empty slice.
var transitions = map[Operational][]Operational{
	PendingApproval: {Provisioning, Error},
	Provisioning:    {Enabled, UpToDate, Error},
	Enabled:         {UpToDate, Suspended, Disabled, Error},
	UpToDate:        {Enabled, Suspended, Disabled, Error},
	Error:           {Provisioning, Disabled},
	Suspended:       {Enabled, Disabled},
	Disabled:        {Provisioning, Archived},
	Archived:        {},
}

// IsValidTransition reports whether moving from -> to is allowed.
func IsValidTransition(from, to Operational) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidNextStates returns the legal successors of from. Unknown states have none.
func ValidNextStates(from Operational) []Operational {
	return append([]Operational(nil), transitions[from]...)
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Operational) bool {
	return s.Valid() && len(transitions[s]) == 0
}

// InitialFor returns the status a new assignment starts in.
func InitialFor(requiresApproval bool) Operational {
	if requiresApproval {
		return PendingApproval
	}
	return Provisioning
}
