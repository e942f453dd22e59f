// Package registry resolves logical algorithm names to freshly constructed algorithms.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/coachpo/algohost/errs"
	"github.com/coachpo/algohost/internal/domain/algo"
)

const algorithmSuffix = "Algorithm"

// Factory constructs a new, independent algorithm object.
type Factory func() (algo.Algorithm, error)

// Source contributes algorithm types discovered outside of Go registration,
// such as script modules scanned from disk.
type Source interface {
	Names() []string
	New(name string) (algo.Algorithm, error)
}

type entry struct {
	name    string
	factory Factory
	source  Source
}

// Registry is the process-wide catalogue of constructible algorithm types.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	names     map[string]string
	sources   []Source
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		names:     make(map[string]string),
	}
}

// Register adds a Go factory under typeName. Names are unique case-insensitively.
func (r *Registry) Register(typeName string, factory Factory) error {
	name := strings.TrimSpace(typeName)
	if name == "" {
		return errs.New("register", errs.CodeInvalid, errs.WithMessage("algorithm type name required"))
	}
	if factory == nil {
		return errs.New("register", errs.CodeInvalid, errs.WithAlgorithm(name), errs.WithMessage("factory required"))
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.names[key]; ok {
		return errs.New("register", errs.CodeConflict, errs.WithAlgorithm(name),
			errs.WithMessage(fmt.Sprintf("algorithm type already registered as %q", existing)))
	}
	r.factories[key] = factory
	r.names[key] = name
	return nil
}

// MustRegister is Register for package-level wiring; it panics on conflict.
func (r *Registry) MustRegister(typeName string, factory Factory) {
	if err := r.Register(typeName, factory); err != nil {
		panic(err)
	}
}

// AddSource attaches an additional type source. Sources are consulted on every lookup,
// so a source that refreshes its contents is picked up without re-registration.
func (r *Registry) AddSource(src Source) {
	if src == nil {
		return
	}
	r.mu.Lock()
	r.sources = append(r.sources, src)
	r.mu.Unlock()
}

// Names lists every registered type name, sorted case-insensitively.
func (r *Registry) Names() []string {
	entries := r.entries()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.name)
	}
	return out
}

// Construct builds the type registered under exactly typeName (case-insensitive).
func (r *Registry) Construct(typeName string) (algo.Algorithm, error) {
	key := strings.ToLower(strings.TrimSpace(typeName))
	for _, e := range r.entries() {
		if strings.ToLower(e.name) == key {
			return e.build()
		}
	}
	return nil, errs.New("construct", errs.CodeNotFound, errs.WithAlgorithm(typeName), errs.WithMessage("algorithm type not registered"))
}

// FindByName resolves name against every registered type, accepting both the exact
// type name and the type name with the "Algorithm" suffix. It returns the new object
// together with the canonical type name.
func (r *Registry) FindByName(name string) (algo.Algorithm, string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, "", errs.New("resolve", errs.CodeNotFound, errs.WithMessage("algorithm name required"))
	}

	var matches []entry
	for _, e := range r.entries() {
		if strings.EqualFold(e.name, trimmed) || strings.EqualFold(e.name, trimmed+algorithmSuffix) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return nil, "", errs.New("resolve", errs.CodeNotFound, errs.WithAlgorithm(trimmed), errs.WithMessage("algorithm not found"))
	case 1:
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.name
		}
		return nil, "", errs.New("resolve", errs.CodeAmbiguous, errs.WithAlgorithm(trimmed),
			errs.WithMessage("algorithm name matches "+strings.Join(names, ", ")))
	}

	instance, err := matches[0].build()
	if err != nil {
		return nil, "", errs.New("resolve", errs.CodeNotFound, errs.WithAlgorithm(matches[0].name),
			errs.WithMessage("algorithm construction failed"), errs.WithCause(err))
	}
	return instance, matches[0].name, nil
}

func (e entry) build() (algo.Algorithm, error) {
	var (
		instance algo.Algorithm
		err      error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("constructor panic: %v", rec)
			}
		}()
		if e.factory != nil {
			instance, err = e.factory()
			return
		}
		instance, err = e.source.New(e.name)
	}()
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%s: constructor returned nil", e.name)
	}
	return instance, nil
}

// entries snapshots factories and source names. Two types that collide
// case-insensitively are both kept so that lookups report the ambiguity.
func (r *Registry) entries() []entry {
	r.mu.RLock()
	out := make([]entry, 0, len(r.factories))
	for key, factory := range r.factories {
		out = append(out, entry{name: r.names[key], factory: factory})
	}
	sources := append([]Source(nil), r.sources...)
	r.mu.RUnlock()

	for _, src := range sources {
		for _, name := range src.Names() {
			if strings.TrimSpace(name) == "" {
				continue
			}
			out = append(out, entry{name: name, source: src})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].name) < strings.ToLower(out[j].name)
	})
	return out
}
