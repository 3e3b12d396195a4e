package render

import (
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/matthewbaird/backoffice/internal/accessor"
	"github.com/matthewbaird/backoffice/internal/meta"
)

// Evaluator compiles and caches field expressions (visibility rules and
// computed values). Records are the expression environment, so nested
// values are reachable as address.city.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewEvaluator returns an empty evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{programs: make(map[string]*vm.Program)}
}

var defaultEvaluator = NewEvaluator()

// Eval runs src against rec.
func (e *Evaluator) Eval(src string, rec accessor.Record) (any, error) {
	prog, err := e.program(src)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = accessor.Record{}
	}
	return expr.Run(prog, map[string]any(rec))
}

// Bool runs src and requires a boolean result.
func (e *Evaluator) Bool(src string, rec accessor.Record) (bool, error) {
	out, err := e.Eval(src, rec)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", src, out)
	}
	return b, nil
}

// Validate compiles src without running it.
func (e *Evaluator) Validate(src string) error {
	_, err := e.program(src)
	return err
}

func (e *Evaluator) program(src string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programs[src]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if prog, ok := e.programs[src]; ok {
		return prog, nil
	}
	prog, err := expr.Compile(src,
		expr.AllowUndefinedVariables(),
		expr.Function("TODAY", func(params ...any) (any, error) {
			return time.Now().Format("2006-01-02"), nil
		}),
		expr.Function("NOW", func(params ...any) (any, error) {
			return time.Now().Format("2006-01-02 15:04:05"), nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", src, err)
	}
	e.programs[src] = prog
	return prog, nil
}

// ComputeError reports a computed field that could not be evaluated.
type ComputeError struct {
	Key string
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("computing %s: %v", e.Key, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// Compute evaluates every computed field of cfg and writes the results into
// rec. A failing field is left untouched and reported; the others are
// still computed.
func Compute(cfg *meta.EntityConfig, rec accessor.Record) []error {
	return defaultEvaluator.Compute(cfg, rec)
}

// Compute is the evaluator-scoped form of the package-level Compute.
func (e *Evaluator) Compute(cfg *meta.EntityConfig, rec accessor.Record) []error {
	var errs []error
	for _, f := range cfg.Fields {
		if !f.Computed || f.ComputeExpr == "" {
			continue
		}
		v, err := e.Eval(f.ComputeExpr, rec)
		if err != nil {
			errs = append(errs, &ComputeError{Key: f.Key, Err: err})
			continue
		}
		accessor.Set(rec, f.Key, v)
	}
	return errs
}
