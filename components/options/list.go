package options

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item is one entry of a static list. Attrs holds every extra key of the
// source document and is matched against query filters.
type Item struct {
	Value any
	Label string
	Attrs map[string]string
}

// LoadList decodes a JSON or YAML array of objects. Each object needs a value;
// label defaults to the value.
func LoadList(r io.Reader) ([]Item, error) {
	if r == nil {
		return nil, fmt.Errorf("options: missing reader")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("options: read list: %w", err)
	}

	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("options: decode list: %w", err)
	}

	items := make([]Item, 0, len(raw))
	for i, entry := range raw {
		value, ok := entry["value"]
		if !ok || value == nil {
			return nil, fmt.Errorf("options: item %d has no value", i)
		}
		item := Item{Value: value, Label: fmt.Sprint(value)}
		if label, ok := entry["label"]; ok && label != nil {
			item.Label = fmt.Sprint(label)
		}
		for key, attr := range entry {
			if key == "value" || key == "label" || attr == nil {
				continue
			}
			if item.Attrs == nil {
				item.Attrs = make(map[string]string)
			}
			item.Attrs[key] = fmt.Sprint(attr)
		}
		items = append(items, item)
	}
	return items, nil
}

// LoadDir reads every .json, .yaml and .yml file of dir. Lists are named after
// the file without its extension.
func LoadDir(dir string) (map[string][]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("options: read dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	lists := make(map[string][]Item, len(names))
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("options: open %s: %w", name, err)
		}
		items, err := LoadList(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("options: %s: %w", name, err)
		}
		lists[strings.TrimSuffix(name, filepath.Ext(name))] = items
	}
	return lists, nil
}
