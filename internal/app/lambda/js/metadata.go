package js

import (
	"fmt"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	"github.com/coachpo/algohost/internal/domain/algo"
)

const maxDisplayNameLength = 80

// Metadata is the self-description exported by a script module.
type Metadata struct {
	Name         string             `json:"name"`
	DisplayName  string             `json:"displayName"`
	Description  string             `json:"description,omitempty"`
	Version      string             `json:"version,omitempty"`
	Author       string             `json:"author,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
	Config       []algo.ConfigField `json:"config,omitempty"`
	ConfigSchema string             `json:"configSchema,omitempty"`
}

// exportedMetadata mirrors Metadata as written in script source, where
// configSchema may be either a JSON string or an object literal.
type exportedMetadata struct {
	Name         string             `json:"name"`
	DisplayName  string             `json:"displayName"`
	Description  string             `json:"description"`
	Version      string             `json:"version"`
	Author       string             `json:"author"`
	Tags         []string           `json:"tags"`
	Config       []algo.ConfigField `json:"config"`
	ConfigSchema any                `json:"configSchema"`
}

func (e exportedMetadata) normalize() (Metadata, error) {
	meta := Metadata{
		Name:        strings.TrimSpace(e.Name),
		DisplayName: strings.TrimSpace(e.DisplayName),
		Description: e.Description,
		Version:     e.Version,
		Author:      e.Author,
		Tags:        append([]string(nil), e.Tags...),
		Config:      append([]algo.ConfigField(nil), e.Config...),
	}
	switch schema := e.ConfigSchema.(type) {
	case nil:
	case string:
		meta.ConfigSchema = strings.TrimSpace(schema)
	default:
		raw, err := json.Marshal(schema)
		if err != nil {
			return Metadata{}, fmt.Errorf("configSchema not serialisable: %w", err)
		}
		meta.ConfigSchema = string(raw)
	}
	return meta, nil
}

// Schema returns the configuration document shown by the platform. An explicit
// configSchema wins over one generated from the config fields.
func (m Metadata) Schema() string {
	if m.ConfigSchema != "" {
		return m.ConfigSchema
	}
	return algo.BuildSchema(m.DisplayName, m.Description, m.Config)
}

// Info converts metadata to the algorithm self-description.
func (m Metadata) Info() algo.Info {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return algo.Info{
		DisplayName:  display,
		Description:  m.Description,
		Version:      m.Version,
		Author:       m.Author,
		Tags:         append([]string(nil), m.Tags...),
		ConfigSchema: m.Schema(),
	}
}

// CloneMetadata returns a copy of meta with cloned slices.
func CloneMetadata(meta Metadata) Metadata {
	clone := meta
	clone.Tags = append([]string(nil), meta.Tags...)
	clone.Config = append([]algo.ConfigField(nil), meta.Config...)
	return clone
}

// MetadataIssue is a single validation failure within metadata.
type MetadataIssue struct {
	Path    string
	Message string
}

// ValidateMetadata reports every problem with meta. An empty result means the
// module can be registered.
func ValidateMetadata(meta Metadata) []MetadataIssue {
	var issues []MetadataIssue

	name := strings.TrimSpace(meta.Name)
	switch {
	case name == "":
		issues = append(issues, MetadataIssue{Path: "metadata.name", Message: "name required"})
	case strings.ContainsAny(name, " \t\r\n"):
		issues = append(issues, MetadataIssue{Path: "metadata.name", Message: "name must not contain whitespace"})
	}

	if utf8.RuneCountInString(meta.DisplayName) > maxDisplayNameLength {
		issues = append(issues, MetadataIssue{
			Path:    "metadata.displayName",
			Message: fmt.Sprintf("displayName must be %d characters or fewer", maxDisplayNameLength),
		})
	}

	if meta.ConfigSchema != "" && !json.Valid([]byte(meta.ConfigSchema)) {
		issues = append(issues, MetadataIssue{Path: "metadata.configSchema", Message: "configSchema must be valid JSON"})
	}

	for idx, field := range meta.Config {
		if strings.TrimSpace(field.Name) == "" {
			issues = append(issues, MetadataIssue{
				Path:    fmt.Sprintf("metadata.config[%d].name", idx),
				Message: "name required",
			})
		}
		if strings.TrimSpace(field.Type) == "" {
			issues = append(issues, MetadataIssue{
				Path:    fmt.Sprintf("metadata.config[%d].type", idx),
				Message: "type required",
			})
		}
	}
	return issues
}
