// Package manifest renders an experiment's field values into the YAML
// document handed to the executor. Rendering is a pure function of the
// definition and values: same inputs, byte-identical output.
package manifest

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"faultctl/internal/catalog"
)

// APIVersion is the fixed apiVersion of every rendered manifest.
const APIVersion = "chaos-mesh.org/v1alpha1"

const encoderIndent = 2

// Render produces the manifest text for the experiment with the supplied
// field values. Keys under "metadata." override the definition's metadata;
// everything else nests under spec following the schema-declared path, in
// schema order.
func Render(exp *catalog.Experiment, values map[string]string) (string, error) {
	if exp == nil {
		return "", fmt.Errorf("manifest: experiment is required")
	}
	root := newMapping()
	appendScalar(root, "apiVersion", APIVersion)
	appendScalar(root, "kind", exp.Kind)

	metadata := newMapping()
	appendScalar(metadata, "name", exp.ObjectName)
	if exp.Namespace != "" {
		appendScalar(metadata, "namespace", exp.Namespace)
	}
	appendNode(root, "metadata", metadata)

	spec := newMapping()
	for _, field := range exp.Fields {
		value, ok := values[field.Key]
		if !ok {
			return "", fmt.Errorf("manifest: no value for field %s", field.Key)
		}
		segments := catalog.SplitKey(field.Key)
		if segments[0] == "metadata" {
			setPath(metadata, segments[1:], value)
			continue
		}
		setPath(spec, segments, value)
	}
	appendNode(root, "spec", spec)

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	return encode(doc)
}

// Reencode parses a rendered manifest and re-emits it with the renderer's
// encoder settings. Render output must survive this byte-identically.
func Reencode(document string) (string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(document), &node); err != nil {
		return "", fmt.Errorf("manifest: parse document: %w", err)
	}
	return encode(&node)
}

func encode(node *yaml.Node) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(encoderIndent)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("manifest: encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("manifest: close encoder: %w", err)
	}
	return buf.String(), nil
}

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

// scalarNode leaves the tag to the encoder so numeric- and boolean-looking
// values emit as plain scalars and parse back to the same bytes. Empty values
// are quoted explicitly; untagged empty scalars would decode as null.
func scalarNode(value string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	if strings.TrimSpace(value) == "" {
		node.Tag = "!!str"
		node.Style = yaml.DoubleQuotedStyle
	}
	return node
}

func appendScalar(mapping *yaml.Node, key, value string) {
	mapping.Content = append(mapping.Content, keyNode(key), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

func appendNode(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, keyNode(key), value)
}

// setPath walks the dotted path, creating nested mappings on first use so
// sibling keys sharing a prefix group under one block in schema order.
func setPath(mapping *yaml.Node, segments []string, value string) {
	if len(segments) == 1 {
		replaceOrAppend(mapping, segments[0], scalarNode(value))
		return
	}
	child := lookupChild(mapping, segments[0])
	if child == nil {
		child = newMapping()
		appendNode(mapping, segments[0], child)
	}
	setPath(child, segments[1:], value)
}

func lookupChild(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key && mapping.Content[i+1].Kind == yaml.MappingNode {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func replaceOrAppend(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	appendNode(mapping, key, value)
}
