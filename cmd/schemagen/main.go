// cmd/schemagen prints the generated admin schema of every entity: its
// configuration, table columns and form fields.
//
// Built-in entities are always included; -dir adds a directory of CUE
// definitions. With -check, it only validates field shapes and expressions
// and exits non-zero on any problem.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/matthewbaird/backoffice/internal/entities"
	"github.com/matthewbaird/backoffice/internal/meta"
	"github.com/matthewbaird/backoffice/internal/render"
	"github.com/matthewbaird/backoffice/internal/schema"
)

// EntitySchema is the generated schema of one entity.
type EntitySchema struct {
	Path    string             `json:"path"`
	Config  meta.EntityConfig  `json:"config"`
	Columns []render.Column    `json:"columns"`
	Form    []render.FormField `json:"form"`
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("schemagen: ")

	dir := flag.String("dir", "", "directory of extra CUE entity definitions")
	out := flag.String("out", "", "write one <path>.json per entity here instead of stdout")
	checkOnly := flag.Bool("check", false, "validate definitions and exit")
	flag.Parse()

	defs, err := entities.Load(*dir)
	if err != nil {
		log.Fatal(err)
	}

	if *checkOnly {
		errs := check(defs, render.NewEvaluator())
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, err)
		}
		if len(errs) > 0 {
			log.Fatalf("%d problem(s) found", len(errs))
		}
		fmt.Printf("%d entities OK\n", len(defs))
		return
	}

	schemas := generate(defs)
	if *out == "" {
		if err := writeJSON(os.Stdout, schemas); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatal(err)
	}
	for _, s := range schemas {
		if err := writeFile(filepath.Join(*out, s.Path+".json"), s); err != nil {
			log.Fatal(err)
		}
	}
	fmt.Printf("wrote %d schemas to %s\n", len(schemas), *out)
}

func generate(defs []*schema.Definition) []EntitySchema {
	formatter := render.NewFormatter("en", "")
	out := make([]EntitySchema, 0, len(defs))
	for _, def := range defs {
		cfg := def.Config()
		out = append(out, EntitySchema{
			Path:    def.Path,
			Config:  cfg,
			Columns: render.Columns(&cfg, formatter),
			Form:    render.FormFields(&cfg),
		})
	}
	return out
}

// check reports duplicate paths, malformed field shapes and expressions
// that do not compile.
func check(defs []*schema.Definition, eval *render.Evaluator) []error {
	var errs []error
	seen := map[string]bool{}
	for _, def := range defs {
		if seen[def.Path] {
			errs = append(errs, fmt.Errorf("%s: duplicate entity path", def.Path))
		}
		seen[def.Path] = true

		cfg := def.Config()
		for _, err := range meta.Check(cfg.Fields) {
			errs = append(errs, fmt.Errorf("%s: %w", def.Path, err))
		}
		for _, f := range cfg.Fields {
			if f.ComputeExpr != "" {
				if err := eval.Validate(f.ComputeExpr); err != nil {
					errs = append(errs, fmt.Errorf("%s.%s: compute: %w", def.Path, f.Key, err))
				}
			}
			if f.Display.VisibleIf != "" {
				if err := eval.Validate(f.Display.VisibleIf); err != nil {
					errs = append(errs, fmt.Errorf("%s.%s: visibleIf: %w", def.Path, f.Key, err))
				}
			}
		}
	}
	return errs
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeFile(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	return writeJSON(f, v)
}
