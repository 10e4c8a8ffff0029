package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// seedTask is one entry of a seed file. Entries may nest their subtasks
// under children instead of spelling out parentId.
type seedTask struct {
	Task     `yaml:",inline"`
	Children []seedTask `json:"children,omitempty" yaml:"children,omitempty"`
}

// ReadTasksFile reads seed tasks from a JSON or YAML file. The format is
// chosen by extension (.yaml/.yml, anything else is JSON). Nested children
// are flattened in depth-first order; a child without parentId gets its
// enclosing task's id and a child without parentIndex gets its position.
func ReadTasksFile(path string) ([]*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks file %s: %w", path, err)
	}

	tasks, err := ParseTasks(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse tasks file %s: %w", path, err)
	}
	return tasks, nil
}

// ParseTasks decodes seed tasks from data. format is "json" or "yaml".
func ParseTasks(data []byte, format string) ([]*Task, error) {
	var entries []seedTask
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
	case "json":
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown tasks file format %q", format)
	}

	var out []*Task
	if err := flatten(entries, nil, &out); err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(out))
	for _, t := range out {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if t.ID != 0 {
			if seen[t.ID] {
				return nil, fmt.Errorf("duplicate task id %d", t.ID)
			}
			seen[t.ID] = true
		}
	}
	return out, nil
}

func flatten(entries []seedTask, parent *Task, out *[]*Task) error {
	for i := range entries {
		e := &entries[i]
		t := e.Task.Clone()
		t.PhantomID = ""
		t.SetDefaults()
		if parent != nil {
			if t.ParentID == nil {
				if parent.ID == 0 {
					return fmt.Errorf("task %q has children but no id", parent.Name)
				}
				t.ParentID = Int(parent.ID)
			}
			if t.ParentIndex == nil {
				t.ParentIndex = Int(int64(i))
			}
		}
		*out = append(*out, t)
		if err := flatten(e.Children, t, out); err != nil {
			return err
		}
	}
	return nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
