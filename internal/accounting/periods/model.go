package periods

// Period represents an accounting period as exposed by the period list.
type Period struct {
	ID        int64
	Name      string
	Closed    bool
	IsQuarter bool
	IsYear    bool
}

// Aggregate reports whether the period is a quarter or year roll-up rather
// than a postable period.
func (p Period) Aggregate() bool {
	return p.IsQuarter || p.IsYear
}

// Open reports whether journals can be filed under the period.
func (p Period) Open() bool {
	return !p.Closed && !p.Aggregate()
}
