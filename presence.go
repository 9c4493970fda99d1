package customdata

// Presence is the bit flag recorded per field while a data object is built.
type Presence uint8

const (
	PresenceSeen           Presence = 1 << iota // Field appeared in the payload.
	PresenceWasNull                             // Field value was null.
	PresenceDefaultApplied                      // Default value was applied.
)

// PresenceMap maps field names to Presence flags.
type PresenceMap map[string]Presence

// Has reports whether every bit of p is set for field.
func (pm PresenceMap) Has(field string, p Presence) bool { return pm[field]&p == p }

func collectPresence(raw map[string]any) PresenceMap {
	pm := make(PresenceMap, len(raw))
	for k, v := range raw {
		pm[k] |= PresenceSeen
		if v == nil {
			pm[k] |= PresenceWasNull
		}
	}
	return pm
}
