// Package registry maps model identifiers to their vendor, tier, prices and
// the engine that can generate with them.
package registry

import (
	"errors"
	"fmt"

	"github.com/yungbote/chatgateway-backend/internal/inference/engine"
)

var (
	ErrNotFound = errors.New("model not found")
	ErrNoEngine = errors.New("no engine configured for vendor")
)

// Handle is everything the pipeline needs to generate with one model.
type Handle struct {
	Descriptor ModelDescriptor
	Engine     engine.Engine
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	models    map[string]ModelDescriptor
	order     []string
	defaultID string
	engines   map[Vendor]engine.Engine
}

func New(models []ModelDescriptor, defaultID string, engines map[Vendor]engine.Engine) (*Registry, error) {
	r := &Registry{
		models:  make(map[string]ModelDescriptor, len(models)),
		engines: make(map[Vendor]engine.Engine, len(engines)),
	}
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model id required")
		}
		if _, dup := r.models[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id: %s", m.ID)
		}
		r.models[m.ID] = m
		r.order = append(r.order, m.ID)
	}
	if defaultID == "" {
		defaultID = DefaultModelID
	}
	if _, ok := r.models[defaultID]; !ok {
		return nil, fmt.Errorf("default model %q is not in the catalog", defaultID)
	}
	r.defaultID = defaultID
	for v, e := range engines {
		if e != nil {
			r.engines[v] = e
		}
	}
	return r, nil
}

// Resolve is a pure lookup by exact identifier.
func (r *Registry) Resolve(modelID string) (ModelDescriptor, error) {
	d, ok := r.models[modelID]
	if !ok {
		return ModelDescriptor{}, fmt.Errorf("%w: %s", ErrNotFound, modelID)
	}
	return d, nil
}

func (r *Registry) Default() ModelDescriptor { return r.models[r.defaultID] }

// List returns descriptors in catalog order.
func (r *Registry) List() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

func (r *Registry) Engine(v Vendor) (engine.Engine, error) {
	e, ok := r.engines[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEngine, v)
	}
	return e, nil
}

func (r *Registry) Handle(modelID string) (Handle, error) {
	d, err := r.Resolve(modelID)
	if err != nil {
		return Handle{}, err
	}
	e, err := r.Engine(d.Vendor)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Descriptor: d, Engine: e}, nil
}

// CheapestFree returns the free model of vendor v with the lowest output
// price, falling back to the default model.
func (r *Registry) CheapestFree(v Vendor) ModelDescriptor {
	var (
		best  ModelDescriptor
		found bool
	)
	for _, id := range r.order {
		d := r.models[id]
		if d.Vendor != v || !d.IsFree() {
			continue
		}
		if !found || d.OutputPricePerM.LessThan(best.OutputPricePerM) {
			best, found = d, true
		}
	}
	if !found {
		return r.Default()
	}
	return best
}
