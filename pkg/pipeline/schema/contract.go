package schema

import (
	"fmt"
	"strings"
)

// ExportMode captures which export variant a run produces.
type ExportMode string

const (
	// ExportModeFull parses tracks, computes aggregates and writes the
	// compact and pretty module files.
	ExportModeFull ExportMode = "full"
	// ExportModeStrip only drops the raw track and writes a bare document.
	ExportModeStrip ExportMode = "strip"
)

// Field captures the minimal behavior-relevant schema fields.
type Field struct {
	Name string
	Type string
}

// StarContract is the logical shape of an exported star.
type StarContract struct {
	// Sample lists the keys of each track entry, in output order.
	Sample []Field
	// Aggregates lists the per-star bounds, in output order.
	Aggregates []Field
	// Excluded lists simulation-runtime fields that never reach a full export.
	Excluded []string
}

// Stars is the contract of the full-fidelity export.
var Stars = StarContract{
	Sample: []Field{
		{Name: "time", Type: "float32"},
		{Name: "mass", Type: "float32"},
		{Name: "logLum", Type: "float32"},
		{Name: "logRadius", Type: "float32"},
		{Name: "logTemp", Type: "float32"},
	},
	Aggregates: []Field{
		{Name: "maxMass", Type: "float32"},
		{Name: "minMass", Type: "float32"},
		{Name: "maxLogLum", Type: "float32"},
		{Name: "minLogLum", Type: "float32"},
		{Name: "maxLogRadius", Type: "float32"},
		{Name: "minLogRadius", Type: "float32"},
	},
	Excluded: []string{"shzInner", "shzOuter", "shzTemp", "distance"},
}

// IsExcluded reports whether name is a simulation-runtime field.
func (c StarContract) IsExcluded(name string) bool {
	for _, f := range c.Excluded {
		if f == name {
			return true
		}
	}
	return false
}

// IsAggregate reports whether name is one of the computed bounds.
func (c StarContract) IsAggregate(name string) bool {
	for _, f := range c.Aggregates {
		if f.Name == name {
			return true
		}
	}
	return false
}

func NormalizeMode(raw string) ExportMode {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "strip", "strip-only", "reduced", "minimal":
		return ExportModeStrip
	default:
		return ExportModeFull
	}
}

// ParseMode is NormalizeMode that rejects unknown non-empty values.
func ParseMode(raw string) (ExportMode, error) {
	mode := NormalizeMode(raw)
	s := strings.TrimSpace(strings.ToLower(raw))
	if mode == ExportModeFull && s != "" && s != string(ExportModeFull) {
		return "", fmt.Errorf("unknown export mode %q", raw)
	}
	return mode, nil
}
