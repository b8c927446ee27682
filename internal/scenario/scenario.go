// Package scenario loads YAML scenario files and replays them against a regions.Set.
//
// A scenario is a named list of steps. Each step performs exactly one operation and
// may state what it expects: a lookup hit, a merge count, the error an insert fails with.
// Files are validated against an embedded JSON schema before they are decoded.
package scenario

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
)

// ErrInvalidScenario is returned for files that do not match the scenario schema.
var ErrInvalidScenario = errors.New("invalid scenario")

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON schema scenario files are validated against.
func Schema() []byte {
	return schemaJSON
}

// Bytes is a size that decodes from an integer or a humanized string such as "4KiB".
type Bytes uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Bytes) UnmarshalYAML(node *yaml.Node) error {
	var raw uint64

	if node.Decode(&raw) == nil {
		*b = Bytes(raw)

		return nil
	}

	parsed, err := humanize.ParseBytes(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*b = Bytes(parsed)

	return nil
}

// RegionSpec describes a region to insert.
type RegionSpec struct {
	Start uint64       `yaml:"start"`
	Size  Bytes        `yaml:"size"`
	Kind  regions.Kind `yaml:"kind"`
}

// Region converts the step into a record.
func (r RegionSpec) Region() regions.Region {
	return regions.Region{Start: r.Start, Size: uint64(r.Size), Kind: r.Kind}
}

// InsertAfterSpec inserts a region next to a known anchor.
type InsertAfterSpec struct {
	Anchor     uint64 `yaml:"anchor"`
	RegionSpec `yaml:",inline"`
}

// StartSpec names a region by its start address.
type StartSpec struct {
	Start uint64 `yaml:"start"`
}

// UpdateSpec rewrites the size or kind of a region.
type UpdateSpec struct {
	Start uint64        `yaml:"start"`
	Size  *Bytes        `yaml:"size"`
	Kind  *regions.Kind `yaml:"kind"`
}

// LookupSpec looks up an address. A nil Start expects a miss.
type LookupSpec struct {
	Addr  uint64  `yaml:"addr"`
	Start *uint64 `yaml:"start"`
}

// CoalesceSpec merges adjacent free regions.
type CoalesceSpec struct {
	Merged *int `yaml:"merged"`
}

// EvictSpec removes every region of a kind.
type EvictSpec struct {
	Kind    regions.Kind `yaml:"kind"`
	Evicted *int         `yaml:"evicted"`
}

// ExpectSpec asserts the shape of the whole set.
type ExpectSpec struct {
	Regions *int   `yaml:"regions"`
	Bytes   *Bytes `yaml:"bytes"`
}

// Step is one scenario operation. Exactly one operation field is set.
type Step struct {
	Insert      *RegionSpec      `yaml:"insert"`
	InsertAfter *InsertAfterSpec `yaml:"insert_after"`
	Remove      *StartSpec       `yaml:"remove"`
	Update      *UpdateSpec      `yaml:"update"`
	Lookup      *LookupSpec      `yaml:"lookup"`
	Coalesce    *CoalesceSpec    `yaml:"coalesce"`
	Evict       *EvictSpec       `yaml:"evict"`
	Expect      *ExpectSpec      `yaml:"expect"`
	Verify      bool             `yaml:"verify"`
	Hibernate   bool             `yaml:"hibernate"`
	Boot        bool             `yaml:"boot"`
	Error       string           `yaml:"error"`
}

// Op returns the name of the step's operation.
func (s *Step) Op() string {
	switch {
	case s.Insert != nil:
		return "insert"
	case s.InsertAfter != nil:
		return "insert_after"
	case s.Remove != nil:
		return "remove"
	case s.Update != nil:
		return "update"
	case s.Lookup != nil:
		return "lookup"
	case s.Coalesce != nil:
		return "coalesce"
	case s.Evict != nil:
		return "evict"
	case s.Expect != nil:
		return "expect"
	case s.Verify:
		return "verify"
	case s.Hibernate:
		return "hibernate"
	case s.Boot:
		return "boot"
	}

	return "unknown"
}

// Scenario is a decoded scenario file.
type Scenario struct {
	Name                 string `yaml:"name"`
	Description          string `yaml:"description"`
	Capacity             int    `yaml:"capacity"`
	HibernationThreshold int    `yaml:"hibernation_threshold"`
	Steps                []Step `yaml:"steps"`
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return sc, nil
}

// Parse validates data against the scenario schema and decodes it.
func Parse(data []byte) (*Scenario, error) {
	var doc any

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if !result.Valid() {
		messages := lo.Map(result.Errors(), func(resultErr gojsonschema.ResultError, _ int) string {
			return resultErr.String()
		})

		return nil, fmt.Errorf("%w: %s", ErrInvalidScenario, strings.Join(messages, "; "))
	}

	var sc Scenario

	err = yaml.Unmarshal(data, &sc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	return &sc, nil
}
