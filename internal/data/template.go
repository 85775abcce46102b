package data

import (
	"fmt"
	"os"
	"sync"

	"github.com/l1jgo/gamefactory/internal/core/tag"
	"github.com/l1jgo/gamefactory/internal/entity"
	"gopkg.in/yaml.v3"
)

// TemplateEntry is one base template from templates.yaml.
type TemplateEntry struct {
	BaseID uint32    `yaml:"base_id"`
	Kind   string    `yaml:"kind"` // category name, e.g. "Actor"; empty for any
	Name   string    `yaml:"name"`
	Pos    []float32 `yaml:"pos"` // optional [x, y, z] spawn position
	Note   string    `yaml:"note"`

	kind tag.Tag
}

type templateFile struct {
	Templates []TemplateEntry `yaml:"templates"`
}

// TemplateTable provides base templates by id. Names can be changed at run
// time by scripts, so lookups are guarded.
type TemplateTable struct {
	mu        sync.RWMutex
	templates map[uint32]*TemplateEntry
}

// LoadTemplateTable loads templates.yaml.
func LoadTemplateTable(path string) (*TemplateTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template list: %w", err)
	}
	return ParseTemplateTable(raw)
}

func ParseTemplateTable(raw []byte) (*TemplateTable, error) {
	var f templateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse template list: %w", err)
	}
	t := &TemplateTable{
		templates: make(map[uint32]*TemplateEntry, len(f.Templates)),
	}
	for i := range f.Templates {
		e := &f.Templates[i]
		if e.BaseID == 0 {
			return nil, fmt.Errorf("template %d (%q): base_id is required", i, e.Name)
		}
		if _, dup := t.templates[e.BaseID]; dup {
			return nil, fmt.Errorf("template %08x defined twice", e.BaseID)
		}
		if e.Kind != "" {
			k, err := tag.Parse(e.Kind)
			if err != nil {
				return nil, fmt.Errorf("template %08x: %w", e.BaseID, err)
			}
			e.kind = k
		}
		if len(e.Pos) != 0 && len(e.Pos) != 3 {
			return nil, fmt.Errorf("template %08x: pos needs 3 coordinates, got %d", e.BaseID, len(e.Pos))
		}
		t.templates[e.BaseID] = e
	}
	return t, nil
}

// Template implements factory.TemplateSource.
func (t *TemplateTable) Template(baseID uint32) (entity.Fields, tag.Tag, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.templates[baseID]
	if !ok {
		return entity.Fields{}, tag.None, false
	}
	f := entity.Fields{Name: e.Name}
	if len(e.Pos) == 3 {
		f.Pos = entity.Vector{X: e.Pos[0], Y: e.Pos[1], Z: e.Pos[2]}
		f.HasPos = true
	}
	return f, e.kind, true
}

// Name returns the template's display name.
func (t *TemplateTable) Name(baseID uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.templates[baseID]
	if !ok {
		return "", false
	}
	return e.Name, true
}

// SetName renames a template. Instances created afterwards take the new
// name; existing ones keep theirs.
func (t *TemplateTable) SetName(baseID uint32, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.templates[baseID]
	if !ok {
		return false
	}
	e.Name = name
	return true
}

// Count returns the total number of templates loaded.
func (t *TemplateTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.templates)
}
