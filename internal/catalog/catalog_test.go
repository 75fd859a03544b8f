package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleExperiment = `name: DNS Faults
description: Rewrites DNS answers for selected pods.
kind: DNSChaos
object_name: dns-example
namespace: default
fields:
  - key: action
    kind: enum
    options: [error, random]
    default: error
  - key: mode
    kind: enum
    options: [one, all]
    default: one
  - key: selector.labelSelectors.app
    default: web-show
`

func TestParseDefinitionYAML(t *testing.T) {
	exp, err := ParseDefinitionYAML([]byte(sampleExperiment))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if exp.Name != "DNS Faults" || exp.Kind != "DNSChaos" {
		t.Fatalf("unexpected experiment: %+v", exp)
	}
	if len(exp.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(exp.Fields))
	}
	if exp.Fields[2].Kind != FieldFreeText {
		t.Fatalf("kind should default to text, got %s", exp.Fields[2].Kind)
	}
}

func TestParseDefinitionYAMLEmpty(t *testing.T) {
	if _, err := ParseDefinitionYAML(nil); err == nil {
		t.Fatalf("expected empty payload to fail")
	}
}

func TestValidateDuplicateKeys(t *testing.T) {
	exp := Experiment{
		Name:       "dup",
		Kind:       "PodChaos",
		ObjectName: "dup-example",
		Fields: []FieldSpec{
			{Key: "action", Default: "pod-failure"},
			{Key: "action", Default: "pod-kill"},
		},
	}
	if err := exp.Validate(); err == nil {
		t.Fatalf("duplicate field keys must fail validation")
	}
}

func TestValidateEmptyPathSegment(t *testing.T) {
	exp := Experiment{
		Name:       "bad-path",
		Kind:       "PodChaos",
		ObjectName: "bad",
		Fields:     []FieldSpec{{Key: "selector..app", Default: "x"}},
	}
	if err := exp.Validate(); err == nil {
		t.Fatalf("empty path segment must fail validation")
	}
}

func TestValidateEnumRequiresOptions(t *testing.T) {
	exp := Experiment{
		Name:       "bad-enum",
		Kind:       "PodChaos",
		ObjectName: "bad",
		Fields:     []FieldSpec{{Key: "action", Kind: FieldEnumerated}},
	}
	if err := exp.Validate(); err == nil {
		t.Fatalf("enum without options must fail validation")
	}
}

func TestValidateEnumDefaultMembership(t *testing.T) {
	exp := Experiment{
		Name:       "bad-default",
		Kind:       "PodChaos",
		ObjectName: "bad",
		Fields: []FieldSpec{
			{Key: "action", Kind: FieldEnumerated, Options: []string{"delay", "loss"}, Default: "corrupt"},
		},
	}
	if err := exp.Validate(); err == nil {
		t.Fatalf("default outside options must fail validation")
	}
}

func TestDefaultValuesCoverSchema(t *testing.T) {
	for _, exp := range Builtins() {
		values := exp.DefaultValues()
		if len(values) != len(exp.Fields) {
			t.Fatalf("%s: expected %d values, got %d", exp.Name, len(exp.Fields), len(values))
		}
		for _, key := range (&exp).FieldKeys() {
			if _, ok := values[key]; !ok {
				t.Fatalf("%s: missing default for %s", exp.Name, key)
			}
		}
	}
}

func TestLoadMergesUserDefinitions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dns.yaml"), []byte(sampleExperiment), 0644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := len(Builtins()) + 1
	if cat.Len() != want {
		t.Fatalf("expected %d experiments, got %d", want, cat.Len())
	}
	if _, ok := cat.Lookup("DNS Faults"); !ok {
		t.Fatalf("user experiment not registered")
	}
	// User definitions come after builtins.
	last := cat.Experiments()[cat.Len()-1]
	if last.Name != "DNS Faults" {
		t.Fatalf("expected user experiment last, got %s", last.Name)
	}
}

func TestLoadMissingDir(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if cat.Len() != len(Builtins()) {
		t.Fatalf("expected builtins only, got %d", cat.Len())
	}
}

func TestNewRejectsDuplicateExperiments(t *testing.T) {
	defs := append(Builtins(), Builtins()[0])
	if _, err := New(defs); err == nil {
		t.Fatalf("duplicate experiment names must fail")
	}
}
