package meta

import "fmt"

// ShapeError is a contract violation in a field list: a relation field
// without a relation descriptor, an option field without options, or a
// duplicated key.
type ShapeError struct {
	Key    string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
}

// Check lints a field list. Rendering never calls it; a malformed field
// only degrades its own output. Tooling uses it to fail early.
func Check(fields []FieldMetadata) []error {
	var errs []error
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Key == "" {
			errs = append(errs, &ShapeError{Reason: "empty key"})
			continue
		}
		if seen[f.Key] {
			errs = append(errs, &ShapeError{Key: f.Key, Reason: "duplicate key"})
		}
		seen[f.Key] = true

		if _, ok := ParseKind(string(f.Kind)); !ok {
			errs = append(errs, &ShapeError{Key: f.Key, Reason: fmt.Sprintf("unknown kind %q", f.Kind)})
		}
		if f.Kind == KindRelation && (f.Relation == nil || f.Relation.Entity == "") {
			errs = append(errs, &ShapeError{Key: f.Key, Reason: "relation field has no relation descriptor"})
		}
		if f.Kind != KindRelation && f.Relation != nil {
			errs = append(errs, &ShapeError{Key: f.Key, Reason: fmt.Sprintf("relation descriptor on %s field", f.Kind)})
		}
		if (f.Kind == KindSelect || f.Display.Widget.NeedsOptions()) && f.Kind != KindRelation && len(f.Options) == 0 {
			errs = append(errs, &ShapeError{Key: f.Key, Reason: "option field has no options"})
		}
		if f.Computed && f.ComputeExpr == "" && !f.ReadOnly {
			errs = append(errs, &ShapeError{Key: f.Key, Reason: "computed field is writable and has no expression"})
		}
	}
	return errs
}
