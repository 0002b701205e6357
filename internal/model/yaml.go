package model

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts scalar strings and numbers.
func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: id must be a scalar", node.Line)
	}
	*id = ID(node.Value)
	return nil
}

// UnmarshalYAML accepts a scalar string or boolean.
func (a *Answer) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: answer must be a scalar", node.Line)
	}
	if node.Tag == "!!bool" {
		b, err := strconv.ParseBool(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid boolean answer: %w", node.Line, err)
		}
		*a = Answer{Bool: b, IsBool: true}
		return nil
	}
	*a = Answer{Text: node.Value}
	return nil
}
