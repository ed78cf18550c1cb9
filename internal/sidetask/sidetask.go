// Package sidetask loads the ordered queue of coding exercises a session can
// pause for. Files are YAML; JSON documents parse as well.
//
//	tasks:
//	  - id: reverse-list
//	    kind: Coding
//	    text: Reverse a singly linked list in place.
package sidetask

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"interview-session-service/internal/models"
)

// ErrEmptyText is returned for items without a prompt.
var ErrEmptyText = errors.New("side task has no text")

type file struct {
	Tasks []models.SideTaskItem `yaml:"tasks"`
}

// Load reads a queue from path. An empty path yields an empty queue.
func Load(path string) ([]models.SideTaskItem, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open side tasks: %w", err)
	}
	defer f.Close()
	items, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Parse decodes a queue. The document is either a mapping with a tasks list or
// a bare list. Items keep file order: Position is the index, a missing id gets
// a random one and a missing kind means Coding.
func Parse(r io.Reader) ([]models.SideTaskItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse side tasks: %w", err)
	}

	var items []models.SideTaskItem
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	switch doc.Kind {
	case yaml.SequenceNode:
		err = doc.Decode(&items)
	case yaml.MappingNode:
		var f file
		err = doc.Decode(&f)
		items = f.Tasks
	default:
		err = fmt.Errorf("expected a list of tasks, got %s", nodeKind(doc.Kind))
	}
	if err != nil {
		return nil, fmt.Errorf("decode side tasks: %w", err)
	}

	for i := range items {
		it := &items[i]
		it.Text = strings.TrimSpace(it.Text)
		if it.Text == "" {
			return nil, fmt.Errorf("task %d: %w", i, ErrEmptyText)
		}
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if it.Kind == "" {
			it.Kind = models.SideTaskKindCoding
		}
		it.Position = i
	}
	return items, nil
}

func nodeKind(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	default:
		return "an empty document"
	}
}
