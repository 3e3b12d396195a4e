package schema

import (
	"strings"

	"github.com/matthewbaird/backoffice/internal/meta"
)

// Options tunes introspection.
type Options struct {
	// DisableHeuristics turns off naming-based kind inference. Fields then
	// get their kind from explicit annotations and primitive types only.
	DisableHeuristics bool
}

// systemFields are managed by the backend and only ever displayed.
var systemFields = map[string]bool{
	"id":        true,
	"updatedAt": true,
}

// timestampKeys are conventional timestamp names treated as dates.
var timestampKeys = map[string]bool{
	"createdAt":  true,
	"updatedAt":  true,
	"deletedAt":  true,
	"created_at": true,
	"updated_at": true,
	"deleted_at": true,
}

// Introspect walks obj and produces its normalized field list. The result
// depends only on obj and opts.
func Introspect(obj *Object, opts ...Options) []meta.FieldMetadata {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if obj == nil {
		return nil
	}
	var out []meta.FieldMetadata
	for _, f := range obj.Fields {
		out = introspectField(out, "", f, true, o)
	}
	return out
}

func introspectField(out []meta.FieldMetadata, prefix string, f *Field, parentRequired bool, o Options) []meta.FieldMetadata {
	def, ann := f.unwrap()
	key := f.Name
	if prefix != "" {
		key = prefix + "." + f.Name
	}
	required := parentRequired && !f.IsOptional()

	// Objects flatten into dotted keys unless annotated with an explicit
	// kind, in which case the object is rendered as a single value.
	if def.Type == PrimObject && (ann == nil || ann.Kind == "") {
		for _, child := range def.Children {
			out = introspectField(out, key, child, required, o)
		}
		return out
	}

	if ann == nil {
		ann = &Annotation{}
	}

	fm := meta.FieldMetadata{
		Key:         key,
		Label:       ann.Label,
		Description: ann.Description,
		Placeholder: ann.Placeholder,
		Required:    required,
		Display:     ann.Display,
		ReadOnly:    ann.ReadOnly || ann.Computed,
		Computed:    ann.Computed,
		ComputeExpr: ann.ComputeExpr,
	}
	if fm.Label == "" {
		fm.Label = DefaultLabel(key)
	}
	if ann.Relation != nil {
		rel := *ann.Relation
		fm.Relation = &rel
	}
	switch {
	case len(ann.Options) > 0:
		fm.Options = append([]meta.Option(nil), ann.Options...)
	case def.Type == PrimEnum:
		fm.Options = meta.StringOptions(def.Choices...)
	}

	fm.Kind = inferKind(f.Name, def, ann, fm.Options, o)

	if systemFields[key] {
		fm.Display.ShowInForm = meta.Bool(false)
		fm.Display.ShowInTable = meta.Bool(false)
		fm.Display.ShowInDetail = meta.Bool(true)
	}
	return append(out, fm)
}

// inferKind applies, in order: explicit kind, relation descriptor, naming
// heuristics for strings, then the primitive type.
func inferKind(name string, def *Field, ann *Annotation, options []meta.Option, o Options) meta.Kind {
	if ann.Kind != "" {
		return ann.Kind
	}
	if ann.Relation != nil {
		return meta.KindRelation
	}
	switch def.Type {
	case PrimString:
		if !o.DisableHeuristics {
			return kindFromName(name, len(options) > 0)
		}
		if len(options) > 0 {
			return meta.KindSelect
		}
		return meta.KindText
	case PrimEnum:
		return meta.KindSelect
	case PrimNumber:
		return meta.KindNumber
	case PrimBool:
		return meta.KindBoolean
	case PrimDate:
		return meta.KindDate
	case PrimList:
		return meta.KindList
	default:
		return meta.KindText
	}
}

// kindFromName is the naming convenience layer for string fields.
func kindFromName(name string, hasOptions bool) meta.Kind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "email"):
		return meta.KindEmail
	case containsAny(lower, "url", "website"):
		return meta.KindURL
	case containsAny(lower, "description", "comment", "content"):
		return meta.KindTextarea
	case containsAny(lower, "image", "photo", "avatar"):
		return meta.KindImage
	case containsAny(lower, "date", "time") || timestampKeys[name] || isAtSuffixed(name):
		return meta.KindDate
	case containsAny(lower, "status", "type", "state"):
		if hasOptions {
			return meta.KindSelect
		}
		return meta.KindText
	}
	if hasOptions {
		return meta.KindSelect
	}
	return meta.KindText
}

// isAtSuffixed matches camelCase timestamp names like publishedAt.
func isAtSuffixed(name string) bool {
	if len(name) < 3 || !strings.HasSuffix(name, "At") {
		return false
	}
	prev := name[len(name)-3]
	return prev >= 'a' && prev <= 'z'
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
