package interco

// Event is the bill lifecycle event that may request generation.
type Event string

const (
	EventCreate Event = "create"
	EventEdit   Event = "edit"
)

// Valid reports whether the event is known.
func (e Event) Valid() bool {
	return e == EventCreate || e == EventEdit
}

// BillSnapshot is the part of a saved bill the trigger looks at.
type BillSnapshot struct {
	LinkedJournalID ID
	Destinations    []ID
}

// ShouldGenerate decides whether a saved bill needs a generation job. Edits
// always regenerate so that a stale journal gets reversed; creates only run
// when some line routes cost elsewhere and nothing is linked yet.
func ShouldGenerate(evt Event, snap BillSnapshot) bool {
	switch evt {
	case EventEdit:
		return true
	case EventCreate:
		if snap.LinkedJournalID.Valid() {
			return false
		}
		for _, dest := range snap.Destinations {
			if dest.Valid() {
				return true
			}
		}
	}
	return false
}
