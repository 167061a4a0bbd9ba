package eventtree

import "ledgersync/internal/models"

// Visit is one preorder step over an update's event tree.
type Visit struct {
	EventID string
	Event   models.Event
	Depth   int
}

// Walk visits the update's events in preorder: each root in
// root_event_ids order, then its children depth-first. It uses an
// explicit work stack so adversarially deep trees cannot blow the call
// stack, and a seen set so a malformed self-referencing tree terminates.
// Child ids that do not resolve within the update are skipped silently;
// the returned count reports how many. Returning false from visit stops
// the walk early. Walk has no side effects and can be restarted on the
// same update any number of times.
func Walk(u *models.Update, visit func(Visit) bool) (skipped int) {
	type frame struct {
		id    string
		depth int
	}

	stack := make([]frame, 0, len(u.RootEventIDs))
	for i := len(u.RootEventIDs) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: u.RootEventIDs[i]})
	}

	seen := make(map[string]bool, len(u.EventsByID))
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ev, ok := u.EventsByID[f.id]
		if !ok || seen[f.id] {
			skipped++
			continue
		}
		seen[f.id] = true

		if !visit(Visit{EventID: f.id, Event: ev, Depth: f.depth}) {
			return skipped
		}

		for i := len(ev.ChildEventIDs) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: ev.ChildEventIDs[i], depth: f.depth + 1})
		}
	}
	return skipped
}
