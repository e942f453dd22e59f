package algo

import (
	"slices"
	"strings"
)

// Descriptor is the discovery view of an algorithm type.
type Descriptor struct {
	Name         string    `json:"name"`
	DisplayName  string    `json:"displayName"`
	Description  string    `json:"description"`
	Version      string    `json:"version"`
	Author       string    `json:"author"`
	Tags         []string  `json:"tags"`
	ConfigSchema string    `json:"configSchema"`
	Interests    Interests `json:"interests"`
}

// HasConfigPanel reports whether the algorithm publishes a configuration schema.
func (d Descriptor) HasConfigPanel() bool {
	return strings.TrimSpace(d.ConfigSchema) != ""
}

// Matches performs a case-insensitive substring match on the type or display name.
// An empty filter matches everything.
func (d Descriptor) Matches(filter string) bool {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return true
	}
	return strings.Contains(strings.ToLower(d.Name), f) ||
		strings.Contains(strings.ToLower(d.DisplayName), f)
}

// Describe builds a descriptor from the live object.
func Describe(name string, a Algorithm) Descriptor {
	return DescribeWith(name, a, HooksOf(a))
}

// DescribeWith builds a descriptor using an already resolved hook set.
func DescribeWith(name string, a Algorithm, hooks Hooks) Descriptor {
	info := a.Info()
	display := strings.TrimSpace(info.DisplayName)
	if display == "" {
		display = name
	}
	return Descriptor{
		Name:         name,
		DisplayName:  display,
		Description:  info.Description,
		Version:      info.Version,
		Author:       info.Author,
		Tags:         slices.Clone(info.Tags),
		ConfigSchema: info.ConfigSchema,
		Interests:    hooks.Interests(),
	}
}
