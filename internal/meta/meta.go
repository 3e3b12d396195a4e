// Package meta defines the normalized, framework-agnostic description of an
// administrable entity: its fields, display rules, relations and the
// capabilities exposed to the back-office.
package meta

import (
	"sort"
)

// Kind is the closed set of field kinds the generators know how to render.
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindBoolean  Kind = "boolean"
	KindSelect   Kind = "select"
	KindTextarea Kind = "textarea"
	KindDate     Kind = "date"
	KindEmail    Kind = "email"
	KindURL      Kind = "url"
	KindRichText Kind = "rich-text"
	KindImage    Kind = "image"
	KindFile     Kind = "file"
	KindRelation Kind = "relation"
	KindList     Kind = "list"
	KindTime     Kind = "time"
)

var allKinds = map[Kind]bool{
	KindText: true, KindNumber: true, KindBoolean: true, KindSelect: true,
	KindTextarea: true, KindDate: true, KindEmail: true, KindURL: true,
	KindRichText: true, KindImage: true, KindFile: true, KindRelation: true,
	KindList: true, KindTime: true,
}

// ParseKind returns the Kind named s and whether it is part of the closed set.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, allKinds[k]
}

// LongForm reports whether values of this kind are too large for a table
// cell by default.
func (k Kind) LongForm() bool {
	return k == KindTextarea || k == KindRichText
}

// Widget overrides the rendering strategy of an option field.
type Widget string

const (
	WidgetDefault Widget = ""
	WidgetSelect  Widget = "select"
	WidgetRadio   Widget = "radio"
	WidgetTag     Widget = "tag"
)

// NeedsOptions reports whether a field rendered with this widget must
// carry enumerated choices.
func (w Widget) NeedsOptions() bool {
	return w == WidgetSelect || w == WidgetRadio || w == WidgetTag
}

// Option is one enumerated choice.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// StringOptions builds options from bare strings, using each value as its
// own label.
func StringOptions(values ...string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: v, Label: v}
	}
	return out
}

// Relation names the foreign entity a relation field points at.
type Relation struct {
	Entity       string `json:"entity"`
	DisplayField string `json:"displayField,omitempty"`
	Multiple     bool   `json:"multiple,omitempty"`
}

// Display carries visibility, ordering and formatting hints. Nil
// visibility pointers mean "use the default for the field kind".
type Display struct {
	ShowInTable       *bool  `json:"showInTable,omitempty"`
	ShowInForm        *bool  `json:"showInForm,omitempty"`
	ShowInDetail      *bool  `json:"showInDetail,omitempty"`
	Order             int    `json:"order,omitempty"`
	Widget            Widget `json:"widget,omitempty"`
	Prefix            string `json:"prefix,omitempty"`
	Suffix            string `json:"suffix,omitempty"`
	Format            string `json:"format,omitempty"`
	VisibleIf         string `json:"visibleIf,omitempty"`
	ArrayDisplayField string `json:"arrayDisplayField,omitempty"`
}

// FieldMetadata describes one entity attribute.
type FieldMetadata struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	Kind        Kind      `json:"kind"`
	Required    bool      `json:"required"`
	Options     []Option  `json:"options,omitempty"`
	Relation    *Relation `json:"relation,omitempty"`
	Display     Display   `json:"display"`
	ReadOnly    bool      `json:"readOnly,omitempty"`
	Computed    bool      `json:"computed,omitempty"`
	// ComputeExpr derives a computed field's value from the rest of the
	// record.
	ComputeExpr string `json:"computeExpr,omitempty"`
}

// TableVisible applies the showInTable default: long-form kinds are hidden.
func (f FieldMetadata) TableVisible() bool {
	if f.Display.ShowInTable != nil {
		return *f.Display.ShowInTable
	}
	return !f.Kind.LongForm()
}

// FormVisible applies the showInForm default.
func (f FieldMetadata) FormVisible() bool {
	if f.Display.ShowInForm != nil {
		return *f.Display.ShowInForm
	}
	return true
}

// DetailVisible applies the showInDetail default.
func (f FieldMetadata) DetailVisible() bool {
	if f.Display.ShowInDetail != nil {
		return *f.Display.ShowInDetail
	}
	return true
}

// Actions are the capability flags of an entity's admin surface.
type Actions struct {
	Create bool `json:"create"`
	Read   bool `json:"read"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
	Bulk   bool `json:"bulk"`
}

// AllActions enables create, read, update and delete.
func AllActions() Actions {
	return Actions{Create: true, Read: true, Update: true, Delete: true}
}

// ParentDescriptor ties a nested entity to its parent resource.
type ParentDescriptor struct {
	// Key is the foreign-key field injected into filters and payloads.
	Key string `json:"key"`
	// RouteParam names the query parameter that supplies the parent id on
	// routes without a parent path segment.
	RouteParam   string `json:"routeParam"`
	ParentEntity string `json:"parentEntity,omitempty"`
	ParentLabel  string `json:"parentLabel,omitempty"`
}

// ChildRoute points at a nested child entity.
type ChildRoute struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// BulkAction is a named operation applied to a selection of rows.
type BulkAction struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Confirm bool   `json:"confirm,omitempty"`
}

// EntityConfig is the generated configuration of one entity.
type EntityConfig struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Icon        string            `json:"icon,omitempty"`
	Fields      []FieldMetadata   `json:"fields"`
	Actions     Actions           `json:"actions"`
	Parent      *ParentDescriptor `json:"parent,omitempty"`
	Children    []ChildRoute      `json:"children,omitempty"`
	BulkActions []BulkAction      `json:"bulkActions,omitempty"`
}

// Field returns the field with the given key.
func (c *EntityConfig) Field(key string) (FieldMetadata, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldMetadata{}, false
}

// TableFields returns the fields shown as table columns, by display order.
func (c *EntityConfig) TableFields() []FieldMetadata {
	return c.filter(FieldMetadata.TableVisible)
}

// FormFields returns the fields shown in create/edit forms, by display order.
func (c *EntityConfig) FormFields() []FieldMetadata {
	return c.filter(FieldMetadata.FormVisible)
}

// DetailFields returns the fields shown on a detail page, by display order.
func (c *EntityConfig) DetailFields() []FieldMetadata {
	return c.filter(FieldMetadata.DetailVisible)
}

func (c *EntityConfig) filter(keep func(FieldMetadata) bool) []FieldMetadata {
	out := make([]FieldMetadata, 0, len(c.Fields))
	for _, f := range c.Fields {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Display.Order < out[j].Display.Order
	})
	return out
}

// Bool returns a pointer to b, for Display visibility flags.
func Bool(b bool) *bool {
	return &b
}
