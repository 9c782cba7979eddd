package valueobject

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ScanInputs holds the workflow inputs sent with a scan dispatch.
// Values are either string or bool. Later assignments of the same key win.
type ScanInputs struct {
	values map[string]any
}

// NewScanInputs returns an empty input set.
func NewScanInputs() *ScanInputs {
	return &ScanInputs{values: make(map[string]any)}
}

// SetString sets a string input after validating the key.
func (s *ScanInputs) SetString(key, value string) error {
	k, err := NewInputKey(key)
	if err != nil {
		return err
	}
	s.values[k.String()] = value
	return nil
}

// SetBool parses value, which must be exactly "true" or "false", and sets it.
func (s *ScanInputs) SetBool(key, value string) error {
	k, err := NewInputKey(key)
	if err != nil {
		return err
	}
	var b bool
	switch value {
	case "true":
		b = true
	case "false":
	default:
		return fmt.Errorf("value '%s' is not a valid boolean", value)
	}
	s.values[k.String()] = b
	return nil
}

// AddStringAssignment parses "key=value" and sets a string input.
func (s *ScanInputs) AddStringAssignment(assignment string) error {
	k, v, err := ParseInputAssignment(assignment)
	if err != nil {
		return err
	}
	return s.SetString(k, v)
}

// AddBoolAssignment parses "key=true|false" and sets a bool input.
func (s *ScanInputs) AddBoolAssignment(assignment string) error {
	k, v, err := ParseInputAssignment(assignment)
	if err != nil {
		return err
	}
	return s.SetBool(k, v)
}

// LoadYAML reads a flat YAML mapping of inputs. Booleans stay booleans,
// every other scalar is sent as its literal string.
func (s *ScanInputs) LoadYAML(r io.Reader) error {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse inputs file: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("inputs file must contain a mapping at line %d", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]
		if valueNode.Kind != yaml.ScalarNode || valueNode.Tag == "!!null" {
			return fmt.Errorf("input '%s' at line %d must be a string or boolean", keyNode.Value, valueNode.Line)
		}

		if valueNode.Tag == "!!bool" {
			var b bool
			if err := valueNode.Decode(&b); err != nil {
				return fmt.Errorf("input '%s' at line %d: %w", keyNode.Value, valueNode.Line, err)
			}
			k, err := NewInputKey(keyNode.Value)
			if err != nil {
				return err
			}
			s.values[k.String()] = b
			continue
		}

		if err := s.SetString(keyNode.Value, valueNode.Value); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of inputs.
func (s *ScanInputs) Len() int {
	return len(s.values)
}

// ToMap returns a copy of the inputs, or nil when there are none so the
// request body carries "inputs": null.
func (s *ScanInputs) ToMap() map[string]any {
	if len(s.values) == 0 {
		return nil
	}
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
