package store

// Mirror describes a relation stored on both sides. Membership of member in
// Collection/{id}/Field is mirrored by MirrorCollection/{member}/MirrorField/{id}.
type Mirror struct {
	// Collection holds the forward side (e.g. "posts").
	Collection string

	// Field is the membership map on the forward record (e.g. "likedBy").
	Field string

	// MirrorCollection holds the reverse side (e.g. "users").
	MirrorCollection string

	// MirrorField is the membership map on the reverse record (e.g. "likedPosts").
	MirrorField string
}

// Paths returns the forward and reverse paths of one membership.
func (m Mirror) Paths(id, member string) (forward, reverse string) {
	return JoinPath(m.Collection, id, m.Field, member),
		JoinPath(m.MirrorCollection, member, m.MirrorField, id)
}

// Set returns the multi-path update that adds member to id on both sides.
func (m Mirror) Set(id, member string) map[string]any {
	fwd, rev := m.Paths(id, member)
	return map[string]any{fwd: true, rev: true}
}

// Clear returns the multi-path update that removes member from id on both sides.
func (m Mirror) Clear(id, member string) map[string]any {
	fwd, rev := m.Paths(id, member)
	return map[string]any{fwd: nil, rev: nil}
}

// Registry holds all known mirrored relations.
type Registry struct {
	mirrors      []Mirror
	byCollection map[string][]Mirror
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		mirrors:      []Mirror{},
		byCollection: make(map[string][]Mirror),
	}
}

// Register adds a mirror to the registry.
func (r *Registry) Register(m Mirror) {
	r.mirrors = append(r.mirrors, m)
	r.byCollection[m.Collection] = append(r.byCollection[m.Collection], m)
}

// MirrorsOf returns the mirrors whose forward side lives in collection.
func (r *Registry) MirrorsOf(collection string) []Mirror {
	return r.byCollection[collection]
}

// AllMirrors returns all registered mirrors.
func (r *Registry) AllMirrors() []Mirror {
	return r.mirrors
}

// HasMirrors returns true if the collection has any registered mirrors.
func (r *Registry) HasMirrors(collection string) bool {
	return len(r.byCollection[collection]) > 0
}
