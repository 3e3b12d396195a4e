package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/matthewbaird/backoffice/internal/accessor"
	"github.com/matthewbaird/backoffice/internal/meta"
)

// Archetype is the input family a form field is rendered with.
type Archetype string

const (
	ArchetypeInput     Archetype = "input"
	ArchetypeMultiline Archetype = "multiline"
	ArchetypeToggle    Archetype = "toggle"
	ArchetypeOptions   Archetype = "options"
	ArchetypeDate      Archetype = "date"
	ArchetypeTime      Archetype = "time"
	ArchetypeTags      Archetype = "tags"
	ArchetypeFile      Archetype = "file"
	ArchetypeRelation  Archetype = "relation"
)

// Picker is the presentation of an option field.
type Picker string

const (
	PickerDropdown Picker = "dropdown"
	PickerRadio    Picker = "radio-group"
	PickerTags     Picker = "tag-group"
)

// FormField is a form input descriptor.
type FormField struct {
	Key         string             `json:"key"`
	Label       string             `json:"label"`
	Description string             `json:"description,omitempty"`
	Placeholder string             `json:"placeholder,omitempty"`
	Archetype   Archetype          `json:"archetype"`
	InputType   string             `json:"inputType,omitempty"`
	Picker      Picker             `json:"picker,omitempty"`
	Multiple    bool               `json:"multiple,omitempty"`
	RichText    bool               `json:"richText,omitempty"`
	Image       bool               `json:"image,omitempty"`
	Options     []meta.Option      `json:"options,omitempty"`
	Relation    *meta.Relation     `json:"relation,omitempty"`
	Required    bool               `json:"required"`
	ReadOnly    bool               `json:"readOnly,omitempty"`
	VisibleIf   string             `json:"visibleIf,omitempty"`
	Field       meta.FieldMetadata `json:"-"`
	// Location renders epoch-millisecond times; nil means UTC.
	Location *time.Location `json:"-"`
}

// FormFields builds one input per form-visible field of cfg.
func FormFields(cfg *meta.EntityConfig) []FormField {
	fields := cfg.FormFields()
	out := make([]FormField, 0, len(fields))
	for _, f := range fields {
		out = append(out, NewFormField(f))
	}
	return out
}

// NewFormField dispatches f's kind to an input archetype.
func NewFormField(f meta.FieldMetadata) FormField {
	ff := FormField{
		Key:         f.Key,
		Label:       f.Label,
		Description: f.Description,
		Placeholder: f.Placeholder,
		Options:     f.Options,
		Required:    f.Required,
		ReadOnly:    f.ReadOnly,
		VisibleIf:   f.Display.VisibleIf,
		Field:       f,
	}
	switch f.Kind {
	case meta.KindTextarea, meta.KindRichText:
		ff.Archetype = ArchetypeMultiline
		ff.RichText = f.Kind == meta.KindRichText
	case meta.KindBoolean:
		ff.Archetype = ArchetypeToggle
	case meta.KindSelect:
		ff.Archetype = ArchetypeOptions
		switch f.Display.Widget {
		case meta.WidgetRadio:
			ff.Picker = PickerRadio
		case meta.WidgetTag:
			ff.Picker = PickerTags
			ff.Multiple = true
		default:
			ff.Picker = PickerDropdown
		}
	case meta.KindDate:
		ff.Archetype = ArchetypeDate
	case meta.KindTime:
		ff.Archetype = ArchetypeTime
	case meta.KindList:
		ff.Archetype = ArchetypeTags
	case meta.KindFile, meta.KindImage:
		ff.Archetype = ArchetypeFile
		ff.Image = f.Kind == meta.KindImage
	case meta.KindRelation:
		ff.Archetype = ArchetypeRelation
		if f.Relation != nil {
			rel := *f.Relation
			ff.Relation = &rel
			ff.Multiple = rel.Multiple
		}
	default:
		ff.Archetype = ArchetypeInput
		ff.InputType = inputType(f.Kind)
	}
	return ff
}

func inputType(k meta.Kind) string {
	switch k {
	case meta.KindEmail:
		return "email"
	case meta.KindURL:
		return "url"
	case meta.KindNumber:
		return "number"
	default:
		return "text"
	}
}

// Visible evaluates the field's visibility rule against rec. Fields without
// a rule, or whose rule fails to compile or run, are visible.
func (ff FormField) Visible(rec accessor.Record) bool {
	if ff.VisibleIf == "" {
		return true
	}
	ok, err := defaultEvaluator.Bool(ff.VisibleIf, rec)
	if err != nil {
		return true
	}
	return ok
}

// Read returns the input value for the field from a stored record,
// normalized for its archetype.
func (ff FormField) Read(rec accessor.Record) any {
	v, ok := accessor.Get(rec, ff.Key)
	if !ok || v == nil {
		switch ff.Archetype {
		case ArchetypeToggle:
			return false
		case ArchetypeTags:
			return []string{}
		}
		return ""
	}
	switch ff.Archetype {
	case ArchetypeToggle:
		b, _ := toBool(v)
		return b
	case ArchetypeTime:
		return ReadTime(v, ff.Location)
	case ArchetypeDate:
		return ReadDate(v)
	case ArchetypeTags:
		return TagListOf(v).Tags()
	case ArchetypeFile:
		return FileValueOf(v)
	}
	return v
}

// Write validates input and stores it into rec in the field's persisted
// representation.
func (ff FormField) Write(rec accessor.Record, input any) error {
	if ff.ReadOnly {
		return fmt.Errorf("%s is read-only", ff.Key)
	}
	var v any = input
	switch ff.Archetype {
	case ArchetypeTime:
		s, err := ParseTime(fmt.Sprint(input))
		if err != nil {
			return err
		}
		v = s
	case ArchetypeDate:
		s, err := ParseDate(fmt.Sprint(input))
		if err != nil {
			return err
		}
		v = s
	case ArchetypeTags:
		switch x := input.(type) {
		case *TagList:
			v = x.String()
		default:
			v = TagListOf(x).String()
		}
	case ArchetypeToggle:
		b, ok := toBool(input)
		if !ok {
			return fmt.Errorf("%s: %v is not a boolean", ff.Key, input)
		}
		v = b
	case ArchetypeFile:
		fv := FileValueOf(input)
		if fv.Pending() {
			v = fv
		} else {
			v = fv.URL
		}
	case ArchetypeOptions:
		if len(ff.Options) > 0 && !ff.Multiple {
			s := fmt.Sprint(input)
			if !hasOption(ff.Options, s) {
				return fmt.Errorf("%s: %q is not an allowed value", ff.Key, s)
			}
		}
	case ArchetypeInput:
		if ff.InputType == "number" {
			if s, ok := input.(string); ok {
				s = strings.TrimSpace(s)
				if s == "" {
					v = nil
					break
				}
				f, ok := toFloat(s)
				if !ok {
					return fmt.Errorf("%s: %q is not a number", ff.Key, s)
				}
				v = f
			}
		}
	}
	accessor.Set(rec, ff.Key, v)
	return nil
}

func hasOption(opts []meta.Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}
