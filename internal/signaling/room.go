package signaling

import "sort"

// Room is a named group of connections that can negotiate with each other.
// It only lives while it has members.
type Room struct {
	// ID is the caller-supplied room identifier.
	ID string

	// Members maps connection ids to their clients.
	Members map[string]*Client
}

func newRoom(id string) *Room {
	return &Room{ID: id, Members: make(map[string]*Client)}
}

// memberIDs returns the sorted member ids, leaving out except.
func (r *Room) memberIDs(except string) []string {
	ids := make([]string, 0, len(r.Members))
	for id := range r.Members {
		if id != except {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
