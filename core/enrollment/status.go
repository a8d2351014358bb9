package enrollment

// transitions is the full legality table for enrollment status changes.
// completed and cancelled are terminal.
var transitions = map[Status][]Status{
	Active:    {Paused, Completed, Cancelled},
	Paused:    {Active, Cancelled},
	Completed: {},
	Cancelled: {},
}

func CanTransition(from Status, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
