// Package props keeps the animated props a train owns so they can be detached or
// disposed together.
package props

import (
	"errors"

	"github.com/RogersSierra/extension/internal/host"
)

// Registry is an ordered set of owned props. Not safe for concurrent use.
type Registry struct {
	items  []host.Prop
	byName map[string]host.Prop
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]host.Prop)}
}

// Register adds a prop. A prop with the same name replaces the earlier entry.
func (r *Registry) Register(p host.Prop) host.Prop {
	if old, ok := r.byName[p.Name()]; ok {
		for i, it := range r.items {
			if it == old {
				r.items = append(r.items[:i], r.items[i+1:]...)
				break
			}
		}
	}
	r.items = append(r.items, p)
	r.byName[p.Name()] = p
	return p
}

// Attach creates a prop through the factory and registers it.
func (r *Registry) Attach(f host.PropFactory, name, bone string) (host.Prop, error) {
	p, err := f.AttachProp(name, bone)
	if err != nil {
		return nil, err
	}
	return r.Register(p), nil
}

// Get returns a registered prop by name.
func (r *Registry) Get(name string) (host.Prop, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Len returns the number of registered props.
func (r *Registry) Len() int {
	return len(r.items)
}

// Detach releases the named props from the vehicle. Unknown names are skipped.
func (r *Registry) Detach(names ...string) {
	for _, name := range names {
		if p, ok := r.byName[name]; ok {
			p.Detach()
		}
	}
}

// Dispose deletes every prop and empties the registry. Panics raised by a prop
// are collected so the remaining props are still deleted.
func (r *Registry) Dispose() (err error) {
	for _, p := range r.items {
		err = errors.Join(err, deleteProp(p))
	}
	r.items = nil
	r.byName = make(map[string]host.Prop)
	return err
}

func deleteProp(p host.Prop) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New("prop " + p.Name() + " panicked on delete")
		}
	}()
	p.Delete()
	return nil
}
