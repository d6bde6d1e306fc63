package special

// Registry holds at most one active special per item.
// It is not safe for concurrent use; callers serialise access.
type Registry struct {
	specials map[string]Special
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{specials: make(map[string]Special)}
}

// Set replaces any special for id with s after validating it.
// On error the registry is left unchanged.
func (r *Registry) Set(id string, s Special) error {
	if err := Validate(s); err != nil {
		return err
	}
	r.specials[id] = s
	return nil
}

// Get returns the special for id. Absence is not an error.
func (r *Registry) Get(id string) (Special, bool) {
	s, ok := r.specials[id]
	return s, ok
}

// Has reports whether id has a special.
func (r *Registry) Has(id string) bool {
	_, ok := r.specials[id]
	return ok
}

// Len returns the number of registered specials.
func (r *Registry) Len() int {
	return len(r.specials)
}
