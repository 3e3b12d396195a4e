package schema

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/matthewbaird/backoffice/internal/meta"
)

// CUE schemas describe an entity as a definition whose fields are the
// entity's attributes:
//
//	#Movie: {
//		id:           string
//		title:        string @ui(label="Titre", order=1)
//		status:       "draft" | "published"
//		categoryId?:  string @ui(relation="categories", display="name")
//		releaseDate?: string
//	} @entity(path="movies", title="Films", icon="🎬")
//
// Optional fields (name?:) are not required. CUE kinds give the primitive
// type, disjunctions of string literals become enums, [...T] becomes a
// list, nested structs flatten to dotted keys. @ui attributes carry the
// field annotation; @entity carries the entity-level metadata.

// CompileCUE compiles CUE source into a value.
func CompileCUE(src []byte) (cue.Value, error) {
	v := cuecontext.New().CompileBytes(src)
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compiling CUE: %w", err)
	}
	return v, nil
}

// LoadCUEDir loads the CUE package in dir.
func LoadCUEDir(dir string) (cue.Value, error) {
	insts := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(insts) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances found in %s", dir)
	}
	if insts[0].Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE in %s: %w", dir, insts[0].Err)
	}
	v := cuecontext.New().BuildInstance(insts[0])
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("building CUE value: %w", err)
	}
	return v, nil
}

// Definitions returns every definition in root annotated with @entity, in
// declaration order.
func Definitions(root cue.Value) ([]*Definition, error) {
	var defs []*Definition
	iter, err := root.Fields(cue.Definitions(true))
	if err != nil {
		return nil, fmt.Errorf("iterating definitions: %w", err)
	}
	for iter.Next() {
		label := iter.Selector().String()
		if !strings.HasPrefix(label, "#") {
			continue
		}
		v := iter.Value()
		a := v.Attribute("entity")
		if a.Err() != nil {
			continue
		}
		d, err := definitionFromCUE(strings.TrimPrefix(label, "#"), v, a)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func definitionFromCUE(name string, v cue.Value, a cue.Attribute) (*Definition, error) {
	obj, err := FromCUE(v)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", name, err)
	}
	d := &Definition{Name: name, Object: obj}
	d.Path = lookup(a, "path")
	if d.Path == "" {
		d.Path = strings.ToLower(name)
	}
	d.Title = lookup(a, "title")
	d.Description = lookup(a, "description")
	d.Icon = lookup(a, "icon")
	if s := lookup(a, "order"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("entity %s: invalid order %q", name, s)
		}
		d.MenuOrder = n
	}
	if s := lookup(a, "actions"); s != "" {
		acts := parseActions(s)
		d.Actions = &acts
	}
	if key := lookup(a, "parentKey"); key != "" {
		d.Parent = &meta.ParentDescriptor{
			Key:          key,
			RouteParam:   lookup(a, "routeParam"),
			ParentEntity: lookup(a, "parent"),
			ParentLabel:  lookup(a, "parentLabel"),
		}
		if d.Parent.RouteParam == "" {
			d.Parent.RouteParam = key
		}
	}
	for _, opt := range parseOptions(lookup(a, "children")) {
		d.Children = append(d.Children, meta.ChildRoute{Path: opt.Value, Label: opt.Label})
	}
	for _, opt := range parseOptions(lookup(a, "bulk")) {
		d.BulkActions = append(d.BulkActions, meta.BulkAction{Name: opt.Value, Label: opt.Label})
	}
	return d, nil
}

// FromCUE converts a CUE struct value into a schema object.
func FromCUE(v cue.Value) (*Object, error) {
	fields, err := fieldsFromCUE(v)
	if err != nil {
		return nil, err
	}
	return &Object{Fields: fields}, nil
}

func fieldsFromCUE(v cue.Value) ([]*Field, error) {
	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return nil, fmt.Errorf("iterating fields: %w", err)
	}
	var fields []*Field
	for iter.Next() {
		label := strings.TrimSuffix(iter.Selector().String(), "?")
		if strings.HasPrefix(label, "_") {
			continue
		}
		f, err := fieldFromCUE(label, iter.Value(), iter.IsOptional())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", label, err)
		}
		if f != nil {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func fieldFromCUE(name string, v cue.Value, optional bool) (*Field, error) {
	own, err := annotationFromCUE(v)
	if err != nil {
		return nil, err
	}
	// A field typed by a reusable definition inherits that definition's
	// annotation when it has none of its own.
	var shared *Annotation
	if _, ref := v.ReferencePath(); len(ref.Selectors()) > 0 {
		if shared, err = annotationFromCUE(cue.Dereference(v)); err != nil {
			return nil, err
		}
	}

	def, err := classifyCUE(name, v)
	if err != nil || def == nil {
		return nil, err
	}
	def.Meta = own
	if optional {
		wrapped := Optional(def)
		wrapped.Meta = shared
		return wrapped, nil
	}
	if def.Meta == nil {
		def.Meta = shared
	}
	return def, nil
}

// classifyCUE maps a CUE value to a primitive-typed field definition.
func classifyCUE(name string, v cue.Value) (*Field, error) {
	if operands(v, refersToTime) {
		return Date(name), nil
	}
	isList := func(o cue.Value) bool { return o.IncompleteKind() == cue.ListKind }
	if operands(v, isList) {
		return List(name), nil
	}
	if choices := enumChoices(v); choices != nil {
		return Enum(name, choices...), nil
	}

	kind := kindOf(v)
	switch {
	case kind == cue.StringKind:
		return String(name), nil
	case kind == cue.BoolKind:
		return Bool(name), nil
	case kind != 0 && kind&^cue.NumberKind == 0:
		return Number(name), nil
	case kind == cue.StructKind:
		children, err := fieldsFromCUE(v)
		if err != nil {
			return nil, err
		}
		return Nested(name, children...), nil
	case kind == cue.BottomKind:
		return nil, nil
	default:
		return Any(name), nil
	}
}

// annotationFromCUE reads the @ui attribute. A field without one yields nil.
func annotationFromCUE(v cue.Value) (*Annotation, error) {
	a := v.Attribute("ui")
	if a.Err() != nil {
		return nil, nil
	}
	ann := &Annotation{
		Label:       lookup(a, "label"),
		Description: lookup(a, "description"),
		Placeholder: lookup(a, "placeholder"),
		ComputeExpr: lookup(a, "compute"),
	}
	if s := lookup(a, "kind"); s != "" {
		k, ok := meta.ParseKind(s)
		if !ok {
			return nil, fmt.Errorf("unknown kind %q", s)
		}
		ann.Kind = k
	}
	ann.Options = parseOptions(lookup(a, "options"))

	if rel := lookup(a, "relation"); rel != "" {
		ann.Relation = &meta.Relation{
			Entity:       rel,
			DisplayField: lookup(a, "display"),
			Multiple:     flag(a, "multiple"),
		}
	}
	ann.ReadOnly = flag(a, "readOnly")
	ann.Computed = flag(a, "computed") || ann.ComputeExpr != ""

	d := &ann.Display
	var err error
	if d.ShowInTable, err = optBool(a, "table"); err != nil {
		return nil, err
	}
	if d.ShowInForm, err = optBool(a, "form"); err != nil {
		return nil, err
	}
	if d.ShowInDetail, err = optBool(a, "detail"); err != nil {
		return nil, err
	}
	if s := lookup(a, "order"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid order %q", s)
		}
		d.Order = n
	}
	d.Widget = meta.Widget(lookup(a, "widget"))
	d.Prefix = lookup(a, "prefix")
	d.Suffix = lookup(a, "suffix")
	d.Format = lookup(a, "format")
	d.VisibleIf = lookup(a, "visibleIf")
	d.ArrayDisplayField = lookup(a, "arrayDisplay")
	return ann, nil
}

func lookup(a cue.Attribute, key string) string {
	s, found, err := a.Lookup(0, key)
	if err != nil || !found {
		return ""
	}
	return strings.TrimSpace(s)
}

func flag(a cue.Attribute, key string) bool {
	if s := lookup(a, key); s != "" {
		b, err := strconv.ParseBool(s)
		return err == nil && b
	}
	ok, err := a.Flag(0, key)
	return err == nil && ok
}

func optBool(a cue.Attribute, key string) (*bool, error) {
	s := lookup(a, key)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s=%q", key, s)
	}
	return meta.Bool(b), nil
}

// parseOptions reads "a,b" or "a:Label A,b:Label B".
func parseOptions(s string) []meta.Option {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []meta.Option
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, label, ok := strings.Cut(part, ":")
		if !ok {
			label = value
		}
		out = append(out, meta.Option{Value: strings.TrimSpace(value), Label: strings.TrimSpace(label)})
	}
	return out
}

func parseActions(s string) meta.Actions {
	var acts meta.Actions
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "create":
			acts.Create = true
		case "read":
			acts.Read = true
		case "update":
			acts.Update = true
		case "delete":
			acts.Delete = true
		case "bulk":
			acts.Bulk = true
		}
	}
	return acts
}

// operands yields v followed by the operands of its top-level & or |
// expression, recursively, stopping as soon as fn returns true.
func operands(v cue.Value, fn func(cue.Value) bool) bool {
	if fn(v) {
		return true
	}
	op, args := v.Expr()
	if op != cue.AndOp && op != cue.OrOp {
		return false
	}
	for _, arg := range args {
		if operands(arg, fn) {
			return true
		}
	}
	return false
}

// refersToTime reports whether v is time.Time or a reference to a
// definition named Time.
func refersToTime(v cue.Value) bool {
	if _, p := v.ReferencePath(); len(p.Selectors()) > 0 {
		sels := p.Selectors()
		return sels[len(sels)-1].String() == "Time"
	}
	op, args := v.Expr()
	if op != cue.SelectorOp || len(args) < 2 {
		return false
	}
	sel, err := args[1].String()
	return err == nil && sel == "Time"
}

// enumChoices returns the string literals of a disjunction of at least two
// of them, looking through a conjunction or a definition reference. A
// disjunct with a default counts as its default.
func enumChoices(v cue.Value) []string {
	var disjuncts []cue.Value
	for _, cand := range []cue.Value{v, cue.Dereference(v)} {
		op, args := cand.Expr()
		if op == cue.OrOp {
			disjuncts = args
			break
		}
		if op == cue.AndOp {
			for _, arg := range args {
				if aop, aargs := arg.Expr(); aop == cue.OrOp {
					disjuncts = aargs
					break
				}
			}
		}
		if disjuncts != nil {
			break
		}
	}
	if len(disjuncts) < 2 {
		return nil
	}
	choices := make([]string, 0, len(disjuncts))
	for _, d := range disjuncts {
		if d.IncompleteKind() != cue.StringKind {
			return nil
		}
		if def, ok := d.Default(); ok {
			d = def
		}
		s, err := d.String()
		if err != nil {
			return nil
		}
		choices = append(choices, s)
	}
	return choices
}

// kindOf is v's kind, or the first definite kind among its operands when
// v itself is unresolved.
func kindOf(v cue.Value) cue.Kind {
	kind := cue.BottomKind
	operands(v, func(o cue.Value) bool {
		kind = o.IncompleteKind()
		return kind != cue.BottomKind
	})
	return kind
}
