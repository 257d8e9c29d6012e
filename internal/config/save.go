package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// SaveSpecFile sets spec_file in the config file.
// Comments and formatting in other sections are preserved.
func SaveSpecFile(configPath, specFile string) error {
	return saveKey(configPath, []string{"spec_file"}, scalarNode(specFile))
}

// SaveAtlasSpaces sets atlases.spaces in the config file.
func SaveAtlasSpaces(configPath string, spaces []string) error {
	return saveKey(configPath, []string{"atlases", "spaces"}, sequenceNode(spaces))
}

// SaveIgnore sets index.ignore in the config file.
func SaveIgnore(configPath string, patterns []string) error {
	if err := ValidateIndex(IndexConfig{Ignore: patterns}); err != nil {
		return err
	}
	return saveKey(configPath, []string{"index", "ignore"}, sequenceNode(patterns))
}

// SaveDatasetLinks sets dataset_links in the config file.
func SaveDatasetLinks(configPath string, links map[string]string) error {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range sortedKeys(links) {
		node.Content = append(node.Content, scalarNode(k), scalarNode(links[k]))
	}
	return saveKey(configPath, []string{"dataset_links"}, node)
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func sequenceNode(values []string) *yaml.Node {
	node := &yaml.Node{
		Kind:    yaml.SequenceNode,
		Content: make([]*yaml.Node, 0, len(values)),
	}
	for _, v := range values {
		node.Content = append(node.Content, scalarNode(v))
	}
	return node
}

// saveKey replaces (or creates) the value at keyPath using yaml.Node so the
// rest of the file keeps its comments.
func saveKey(configPath string, keyPath []string, value *yaml.Node) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: config path from flag or default location
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return fmt.Errorf("parsing config: unexpected document structure")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("parsing config: top level must be a mapping")
	}

	setNode(root, keyPath, value)

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// setNode walks mapping nodes along keyPath, creating missing ones.
func setNode(mapping *yaml.Node, keyPath []string, value *yaml.Node) {
	key := keyPath[0]
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value != key {
			continue
		}
		if len(keyPath) == 1 {
			mapping.Content[i+1] = value
			return
		}
		child := mapping.Content[i+1]
		if child.Kind != yaml.MappingNode {
			child = &yaml.Node{Kind: yaml.MappingNode}
			mapping.Content[i+1] = child
		}
		setNode(child, keyPath[1:], value)
		return
	}

	if len(keyPath) == 1 {
		mapping.Content = append(mapping.Content, scalarNode(key), value)
		return
	}
	child := &yaml.Node{Kind: yaml.MappingNode}
	mapping.Content = append(mapping.Content, scalarNode(key), child)
	setNode(child, keyPath[1:], value)
}

// writeAtomic writes to a temp file and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".smripost.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
