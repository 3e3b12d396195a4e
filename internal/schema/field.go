// Package schema turns a validation-schema object into normalized field
// metadata.
//
// A schema object is an ordered list of field definitions. Each definition
// has a primitive type, may be wrapped once in Optional, and may carry an
// Annotation. Definitions come either from the Go builders in this file or
// from CUE definitions (see FromCUE).
package schema

import "github.com/matthewbaird/backoffice/internal/meta"

// Primitive is the validation type of a field definition.
type Primitive int

const (
	PrimAny Primitive = iota
	PrimString
	PrimNumber
	PrimBool
	PrimDate
	PrimEnum
	PrimList
	PrimObject
)

func (p Primitive) String() string {
	switch p {
	case PrimString:
		return "string"
	case PrimNumber:
		return "number"
	case PrimBool:
		return "bool"
	case PrimDate:
		return "date"
	case PrimEnum:
		return "enum"
	case PrimList:
		return "list"
	case PrimObject:
		return "object"
	default:
		return "any"
	}
}

// Annotation is the metadata payload attached to a field definition.
// Zero values mean "not specified".
type Annotation struct {
	Label       string
	Description string
	Placeholder string
	Kind        meta.Kind
	Display     meta.Display
	Relation    *meta.Relation
	Options     []meta.Option
	ReadOnly    bool
	Computed    bool
	ComputeExpr string
}

// Field is one field definition.
type Field struct {
	Name     string
	Type     Primitive
	Choices  []string
	Children []*Field
	Meta     *Annotation

	optional bool
	inner    *Field
}

// String declares a string field.
func String(name string) *Field { return &Field{Name: name, Type: PrimString} }

// Number declares a numeric field.
func Number(name string) *Field { return &Field{Name: name, Type: PrimNumber} }

// Bool declares a boolean field.
func Bool(name string) *Field { return &Field{Name: name, Type: PrimBool} }

// Date declares a date/time-typed field.
func Date(name string) *Field { return &Field{Name: name, Type: PrimDate} }

// Enum declares a field restricted to the given choices.
func Enum(name string, choices ...string) *Field {
	return &Field{Name: name, Type: PrimEnum, Choices: append([]string(nil), choices...)}
}

// List declares a list-of-scalars field.
func List(name string) *Field { return &Field{Name: name, Type: PrimList} }

// Any declares a field with no primitive constraint.
func Any(name string) *Field { return &Field{Name: name, Type: PrimAny} }

// Nested declares an object-typed field whose children are flattened into
// dotted keys.
func Nested(name string, children ...*Field) *Field {
	return &Field{Name: name, Type: PrimObject, Children: children}
}

// Optional wraps f. Metadata on f (the inner definition) takes precedence
// over metadata attached to the wrapper.
func Optional(f *Field) *Field {
	return &Field{
		Name:     f.Name,
		Type:     f.Type,
		Choices:  f.Choices,
		Children: f.Children,
		optional: true,
		inner:    f,
	}
}

// With returns a copy of f carrying the annotation.
func (f *Field) With(a Annotation) *Field {
	cp := *f
	cp.Meta = &a
	return &cp
}

// IsOptional reports whether f is wrapped in Optional.
func (f *Field) IsOptional() bool { return f.optional }

// unwrap returns the definition that determines type and the annotation
// in effect: inner metadata first, then the wrapper's.
func (f *Field) unwrap() (*Field, *Annotation) {
	def := f
	if f.inner != nil {
		def = f.inner
	}
	ann := def.Meta
	if ann == nil {
		ann = f.Meta
	}
	return def, ann
}

// Object is a validation-schema object: fields in declaration order.
type Object struct {
	Fields []*Field
}

// Define builds an Object from field definitions.
func Define(fields ...*Field) *Object {
	return &Object{Fields: fields}
}
