package generate

// NoopPopulator does nothing. It gives a dimension a populator to run
// when no real structure-placing implementation has been registered yet,
// so the populate step of the column FSM is exercised unconditionally.
type NoopPopulator struct {
	PriorityValue int
}

// Priority implements Populator.
func (p NoopPopulator) Priority() int { return p.PriorityValue }

// Populate implements Populator.
func (p NoopPopulator) Populate(ev PopulateEvent) {}
