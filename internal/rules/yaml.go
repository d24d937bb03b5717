package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func decodeYAML(data []byte) (*document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &ConfigValidationError{Reason: "malformed YAML", Err: err}
	}
	if node.Kind == 0 {
		return &document{root: value{kind: kindNull}}, nil
	}
	root, err := fromYAML(&node)
	if err != nil {
		return nil, &ConfigValidationError{Reason: "malformed YAML", Err: err}
	}
	return &document{root: root}, nil
}

// fromYAML converts a yaml.Node; mapping order is preserved from the node's
// Content pairs.
func fromYAML(n *yaml.Node) (value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value{kind: kindNull}, nil
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.MappingNode:
		v := value{kind: kindMap}
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return value{}, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			val, err := fromYAML(n.Content[i+1])
			if err != nil {
				return value{}, err
			}
			v.entries = append(v.entries, entry{key: key.Value, val: val})
		}
		return v, nil
	case yaml.SequenceNode:
		v := value{kind: kindList}
		for _, c := range n.Content {
			item, err := fromYAML(c)
			if err != nil {
				return value{}, err
			}
			v.list = append(v.list, item)
		}
		return v, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int", "!!float":
			return value{kind: kindNumber, text: n.Value}, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return value{}, fmt.Errorf("line %d: %w", n.Line, err)
			}
			return value{kind: kindBool, boolean: b}, nil
		case "!!null":
			return value{kind: kindNull}, nil
		case "!!str":
			return value{kind: kindString, text: n.Value}, nil
		}
		return value{}, fmt.Errorf("line %d: unsupported tag %s", n.Line, n.ShortTag())
	}
	return value{}, fmt.Errorf("line %d: unsupported node", n.Line)
}
