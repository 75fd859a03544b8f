package catalog

import (
	"fmt"
	"strings"
)

// FieldKind distinguishes free-form fields from enumerated ones.
type FieldKind string

const (
	// FieldFreeText accepts any printable string.
	FieldFreeText FieldKind = "text"
	// FieldEnumerated only accepts one of the declared options.
	FieldEnumerated FieldKind = "enum"
)

// FieldSpec declares one editable parameter of an experiment. Key is a dotted
// path into the rendered manifest ("spec." is implied unless the path starts
// with "metadata.").
type FieldSpec struct {
	Key     string    `yaml:"key"`
	Label   string    `yaml:"label,omitempty"`
	Kind    FieldKind `yaml:"kind,omitempty"`
	Options []string  `yaml:"options,omitempty"`
	Default string    `yaml:"default,omitempty"`
}

func (f FieldSpec) normalized() FieldSpec {
	clone := FieldSpec{
		Key:     strings.TrimSpace(f.Key),
		Label:   strings.TrimSpace(f.Label),
		Kind:    FieldKind(strings.ToLower(strings.TrimSpace(string(f.Kind)))),
		Default: strings.TrimSpace(f.Default),
	}
	if clone.Kind == "" {
		clone.Kind = FieldFreeText
	}
	if len(f.Options) > 0 {
		clone.Options = make([]string, 0, len(f.Options))
		for _, opt := range f.Options {
			trimmed := strings.TrimSpace(opt)
			if trimmed == "" {
				continue
			}
			clone.Options = append(clone.Options, trimmed)
		}
	}
	return clone
}

// Validate ensures the field declaration is well-formed.
func (f FieldSpec) Validate() error {
	normalized := f.normalized()
	if normalized.Key == "" {
		return fmt.Errorf("key is required")
	}
	for _, segment := range SplitKey(normalized.Key) {
		if strings.TrimSpace(segment) == "" {
			return fmt.Errorf("key %s has an empty path segment", normalized.Key)
		}
	}
	switch normalized.Kind {
	case FieldFreeText:
		if len(normalized.Options) > 0 {
			return fmt.Errorf("field %s: options are only valid for enum fields", normalized.Key)
		}
	case FieldEnumerated:
		if len(normalized.Options) == 0 {
			return fmt.Errorf("field %s: enum fields require options", normalized.Key)
		}
		if normalized.Default != "" && !contains(normalized.Options, normalized.Default) {
			return fmt.Errorf("field %s: default %q is not one of the options", normalized.Key, normalized.Default)
		}
	default:
		return fmt.Errorf("field %s: kind must be %q or %q", normalized.Key, FieldFreeText, FieldEnumerated)
	}
	return nil
}

// Experiment describes one fault-injection scenario: a manifest kind plus the
// editable parameter schema. Definitions are immutable once loaded; sessions
// hold references, never copies.
type Experiment struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Kind        string      `yaml:"kind"`
	ObjectName  string      `yaml:"object_name"`
	Namespace   string      `yaml:"namespace,omitempty"`
	Fields      []FieldSpec `yaml:"fields"`
}

// Normalized returns a trimmed copy of the definition.
func (e Experiment) Normalized() Experiment {
	clone := Experiment{
		Name:        strings.TrimSpace(e.Name),
		Description: strings.TrimSpace(e.Description),
		Kind:        strings.TrimSpace(e.Kind),
		ObjectName:  strings.TrimSpace(e.ObjectName),
		Namespace:   strings.TrimSpace(e.Namespace),
	}
	if len(e.Fields) > 0 {
		clone.Fields = make([]FieldSpec, len(e.Fields))
		for i, field := range e.Fields {
			clone.Fields[i] = field.normalized()
		}
	}
	return clone
}

// Validate enforces the schema invariants. A violation here is a programming
// error in the catalog source and must abort loading before any session exists.
func (e Experiment) Validate() error {
	normalized := e.Normalized()
	if normalized.Name == "" {
		return fmt.Errorf("experiment: name is required")
	}
	if normalized.Kind == "" {
		return fmt.Errorf("experiment %s: kind is required", normalized.Name)
	}
	if normalized.ObjectName == "" {
		return fmt.Errorf("experiment %s: object_name is required", normalized.Name)
	}
	if len(normalized.Fields) == 0 {
		return fmt.Errorf("experiment %s: at least one field is required", normalized.Name)
	}
	seen := make(map[string]struct{}, len(normalized.Fields))
	for idx, field := range normalized.Fields {
		if err := field.Validate(); err != nil {
			return fmt.Errorf("experiment %s: fields[%d]: %w", normalized.Name, idx, err)
		}
		if _, exists := seen[field.Key]; exists {
			return fmt.Errorf("experiment %s: duplicate field key %s", normalized.Name, field.Key)
		}
		seen[field.Key] = struct{}{}
	}
	return nil
}

// Field returns the spec for key, if declared.
func (e *Experiment) Field(key string) (FieldSpec, bool) {
	for _, field := range e.Fields {
		if field.Key == key {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// FieldKeys returns the declared keys in schema order.
func (e *Experiment) FieldKeys() []string {
	keys := make([]string, len(e.Fields))
	for i, field := range e.Fields {
		keys[i] = field.Key
	}
	return keys
}

// DefaultValues builds the initial value set for a new session. The result
// always carries exactly the schema's keys.
func (e *Experiment) DefaultValues() map[string]string {
	values := make(map[string]string, len(e.Fields))
	for _, field := range e.Fields {
		values[field.Key] = field.Default
	}
	return values
}

// Catalog is the ordered collection of loaded experiment definitions.
type Catalog struct {
	experiments []*Experiment
	byName      map[string]*Experiment
}

// New validates the supplied definitions and builds a catalog. Duplicate
// experiment names fail fast.
func New(defs []Experiment) (*Catalog, error) {
	cat := &Catalog{byName: make(map[string]*Experiment, len(defs))}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		normalized := def.Normalized()
		if _, exists := cat.byName[normalized.Name]; exists {
			return nil, fmt.Errorf("catalog: duplicate experiment %s", normalized.Name)
		}
		entry := &normalized
		cat.experiments = append(cat.experiments, entry)
		cat.byName[normalized.Name] = entry
	}
	return cat, nil
}

// Experiments returns the definitions in load order.
func (c *Catalog) Experiments() []*Experiment {
	return c.experiments
}

// Lookup returns the definition registered under name.
func (c *Catalog) Lookup(name string) (*Experiment, bool) {
	exp, ok := c.byName[strings.TrimSpace(name)]
	return exp, ok
}

// Len reports how many experiments are loaded.
func (c *Catalog) Len() int {
	return len(c.experiments)
}

// SplitKey breaks a dotted field key into its path segments. Segments wrapped
// in single quotes are atomic, so label keys like 'app.kubernetes.io/component'
// survive intact. The grouping is declared here, never inferred downstream.
func SplitKey(key string) []string {
	var segments []string
	var current strings.Builder
	quoted := false
	for _, r := range key {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == '.' && !quoted:
			segments = append(segments, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	segments = append(segments, current.String())
	return segments
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
