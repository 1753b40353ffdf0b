package collaboration

import (
	"slices"
	"sort"
	"sync"
)

// PresenceRegistry maps document id -> identities currently joined.
// Identities keep join order so presence broadcasts iterate stably.
// It is process-local: several server processes need the Redis mirror
// (or sticky routing) to see each other's presence.
type PresenceRegistry struct {
	mu   sync.Mutex
	docs map[string][]string
}

// NewPresenceRegistry creates an empty registry
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{docs: make(map[string][]string)}
}

// Join adds identity to the document's presence set and returns the resulting set.
// Joining twice with the same identity does not duplicate it.
func (r *PresenceRegistry) Join(docID, identity string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.docs[docID]
	if !slices.Contains(members, identity) {
		members = append(members, identity)
		r.docs[docID] = members
	}
	return slices.Clone(members)
}

// Leave removes identity and returns the remaining set (empty, never nil).
// The entry is dropped once empty; leaving an absent identity is a no-op.
func (r *PresenceRegistry) Leave(docID, identity string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.docs[docID]
	if !ok {
		return []string{}
	}

	if i := slices.Index(members, identity); i >= 0 {
		members = slices.Delete(members, i, i+1)
	}
	if len(members) == 0 {
		delete(r.docs, docID)
		return []string{}
	}
	r.docs[docID] = members
	return slices.Clone(members)
}

// Members returns a snapshot of the document's presence set
func (r *PresenceRegistry) Members(docID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := slices.Clone(r.docs[docID])
	if members == nil {
		return []string{}
	}
	return members
}

// Documents returns the ids of documents with at least one member, sorted
func (r *PresenceRegistry) Documents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
