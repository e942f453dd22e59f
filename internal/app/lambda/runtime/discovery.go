package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/observability"
)

// Catalog enumerates and constructs registered algorithm types.
type Catalog interface {
	Names() []string
	Construct(name string) (algo.Algorithm, error)
}

// Discovery answers catalogue and running-instance queries.
type Discovery struct {
	catalog Catalog
	table   *Table
	logger  observability.Logger
}

// NewDiscovery constructs the discovery service.
func NewDiscovery(catalog Catalog, table *Table, logger observability.Logger) *Discovery {
	return &Discovery{catalog: catalog, table: table, logger: observability.OrNop(logger)}
}

// ListAvailable describes every constructible type whose type or display name
// contains filter, sorted by name. Objects built for description are discarded
// and never enter the instance table. Types that fail to construct are skipped.
func (d *Discovery) ListAvailable(_ context.Context, filter string) []algo.Descriptor {
	if d.catalog == nil {
		return []algo.Descriptor{}
	}
	seen := make(map[string]struct{})
	out := make([]algo.Descriptor, 0)
	for _, name := range d.catalog.Names() {
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		desc, err := d.describe(name)
		if err != nil {
			d.logger.Warn("skipping algorithm in listing", observability.F("algorithm", name), observability.Err(err))
			continue
		}
		if desc.Matches(filter) {
			out = append(out, desc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

func (d *Discovery) describe(name string) (desc algo.Descriptor, err error) {
	instance, err := d.catalog.Construct(name)
	if err != nil {
		return algo.Descriptor{}, err
	}
	defer algo.Release(instance)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("describe %s: panic: %v", name, rec)
		}
	}()
	return algo.Describe(name, instance), nil
}

// ListRunning returns every Running or Paused instance whose algorithm matches
// filter, ordered by instance id.
func (d *Discovery) ListRunning(_ context.Context, filter string) []Snapshot {
	out := make([]Snapshot, 0)
	for _, c := range d.table.Contexts() {
		if !c.State().Listed() {
			continue
		}
		snap := c.Snapshot()
		if snap.Descriptor.Matches(filter) {
			out = append(out, snap)
		}
	}
	return out
}
