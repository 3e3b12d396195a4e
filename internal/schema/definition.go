package schema

import (
	"github.com/matthewbaird/backoffice/internal/meta"
)

// Definition is an entity-level schema: the field object plus the
// entity's own presentation and routing metadata.
type Definition struct {
	// Name is the schema identifier (CUE definition name without '#').
	Name        string
	Path        string
	Title       string
	Description string
	Icon        string
	MenuOrder   int
	Actions     *meta.Actions
	Parent      *meta.ParentDescriptor
	Children    []meta.ChildRoute
	BulkActions []meta.BulkAction
	Object      *Object
}

// Config introspects d.Object and assembles the entity configuration.
// Actions default to full CRUD when not declared.
func (d *Definition) Config(opts ...Options) meta.EntityConfig {
	actions := meta.AllActions()
	if d.Actions != nil {
		actions = *d.Actions
	}
	title := d.Title
	if title == "" {
		title = DefaultLabel(d.Path)
	}
	cfg := meta.EntityConfig{
		Title:       title,
		Description: d.Description,
		Icon:        d.Icon,
		Fields:      Introspect(d.Object, opts...),
		Actions:     actions,
		Children:    append([]meta.ChildRoute(nil), d.Children...),
		BulkActions: append([]meta.BulkAction(nil), d.BulkActions...),
	}
	if d.Parent != nil {
		p := *d.Parent
		cfg.Parent = &p
	}
	if len(cfg.BulkActions) > 0 {
		cfg.Actions.Bulk = true
	}
	return cfg
}
