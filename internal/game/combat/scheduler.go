package combat

// AliveOrder returns the party indexes of living members in party-array order.
//
// Postcondition: Every living member appears exactly once; no dead member appears.
func AliveOrder(party []Member) []int {
	order := make([]int, 0, len(party))
	for i, m := range party {
		if m.Alive() {
			order = append(order, i)
		}
	}
	return order
}

// Schedule drives engagements and turns.
// An engagement is one member's skill plus the boss counter; a turn is one pass over Order.
//
// Invariant: Order is fixed for the duration of a turn and holds exactly the members alive at its start.
type Schedule struct {
	Engagement int   `json:"engagement"`
	Turn       int   `json:"turn"`
	Order      []int `json:"order"`
	Cursor     int   `json:"cursor"`
}

// NewSchedule starts the first turn with the living members of party.
//
// Postcondition: Engagement == 1, Turn == 1, Cursor == 0.
func NewSchedule(party []Member) Schedule {
	return Schedule{Engagement: 1, Turn: 1, Order: AliveOrder(party)}
}

// Current returns the party index of the acting member, or -1 when the order is exhausted.
func (s Schedule) Current() int {
	if s.Cursor < 0 || s.Cursor >= len(s.Order) {
		return -1
	}
	return s.Order[s.Cursor]
}

// Advance moves to the next living member of the current order. Members that died mid-turn
// are skipped but the order itself is left untouched. Past the end of the order a new turn
// starts with an order recomputed from the live roster.
//
// Postcondition: Returns true when a new turn started.
func (s *Schedule) Advance(party []Member) bool {
	for s.Cursor+1 < len(s.Order) {
		s.Cursor++
		if idx := s.Order[s.Cursor]; idx < len(party) && party[idx].Alive() {
			return false
		}
	}
	s.Turn++
	s.Order = AliveOrder(party)
	s.Cursor = 0
	return true
}

func (s Schedule) clone() Schedule {
	s.Order = append([]int(nil), s.Order...)
	return s
}
