package layout

// Registry holds entities in declaration order.
type Registry struct {
	entities []*Entity
	byName   map[string]*Entity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make([]*Entity, 0),
		byName:   make(map[string]*Entity),
	}
}

// Register adds an entity. Names are unique.
func (r *Registry) Register(e *Entity) error {
	if e == nil {
		return ErrInvalidEntity
	}
	if _, exists := r.byName[e.Name()]; exists {
		return &DuplicateEntityError{Name: e.Name()}
	}

	r.entities = append(r.entities, e)
	r.byName[e.Name()] = e
	return nil
}

// Lookup returns the entity registered under name.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// List returns all entities in declaration order.
func (r *Registry) List() []*Entity {
	return r.entities
}

// Names returns all entity names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entities))
	for i, e := range r.entities {
		names[i] = e.Name()
	}
	return names
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return len(r.entities)
}

// Extract applies the named entity's pattern to text.
func (r *Registry) Extract(name, text string) (any, bool, error) {
	e, ok := r.byName[name]
	if !ok {
		return nil, false, &UnknownEntityError{Name: name}
	}
	return e.Extract(text)
}

// Coerce converts raw text for the named entity. Names that are not
// registered are treated as strings.
func (r *Registry) Coerce(name, raw string) (any, error) {
	if r == nil {
		return raw, nil
	}
	e, ok := r.byName[name]
	if !ok {
		return raw, nil
	}
	return e.Coerce(raw)
}

// ExtractAll applies every registered entity to path and returns the ones
// that occur.
func (r *Registry) ExtractAll(path string) (Entities, error) {
	out := make(Entities)
	for _, e := range r.entities {
		v, ok, err := e.Extract(path)
		if err != nil {
			return nil, err
		}
		if ok {
			out[e.Name()] = v
		}
	}
	return out, nil
}
