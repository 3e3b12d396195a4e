package render

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/matthewbaird/backoffice/internal/accessor"
	"github.com/matthewbaird/backoffice/internal/meta"
)

// Placeholder is shown for absent or unrenderable values.
const Placeholder = "-"

// DefaultDateLayout is the short date format used for date cells.
const DefaultDateLayout = "02/01/2006"

const (
	glyphTrue  = "✓"
	glyphFalse = "✗"
)

// Align is the horizontal alignment of a cell.
type Align string

const (
	AlignLeft   Align = "left"
	AlignRight  Align = "right"
	AlignCenter Align = "center"
)

// Cell is one rendered table value.
type Cell struct {
	Type  ContentType `json:"type"`
	Text  string      `json:"text"`
	Tags  []string    `json:"tags,omitempty"`
	Align Align       `json:"align"`
}

// FormatFunc renders a value for a field whose display format names it.
type FormatFunc func(v any) string

// Formatter holds the locale-dependent rendering settings shared by every
// column.
type Formatter struct {
	DateLayout string

	printer *message.Printer
	mu      sync.RWMutex
	formats map[string]FormatFunc
}

// NewFormatter returns a formatter for the given BCP 47 locale. An empty
// dateLayout uses DefaultDateLayout.
func NewFormatter(locale, dateLayout string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	return &Formatter{
		DateLayout: dateLayout,
		printer:    message.NewPrinter(tag),
		formats:    make(map[string]FormatFunc),
	}
}

// RegisterFormat installs a named custom formatter, selected by a field's
// display format.
func (f *Formatter) RegisterFormat(name string, fn FormatFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formats[name] = fn
}

func (f *Formatter) format(name string) (FormatFunc, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn, ok := f.formats[name]
	return fn, ok
}

// Number formats n with locale grouping.
func (f *Formatter) Number(n float64) string {
	return f.printer.Sprint(number.Decimal(n))
}

// Column is a table-column descriptor.
type Column struct {
	Key    string             `json:"key"`
	Header string             `json:"header"`
	Kind   meta.Kind          `json:"kind"`
	Field  meta.FieldMetadata `json:"-"`

	formatter *Formatter
}

// Columns builds one column per table-visible field of cfg.
func Columns(cfg *meta.EntityConfig, f *Formatter) []Column {
	if f == nil {
		f = NewFormatter("en", "")
	}
	fields := cfg.TableFields()
	cols := make([]Column, 0, len(fields))
	for _, fm := range fields {
		cols = append(cols, Column{Key: fm.Key, Header: fm.Label, Kind: fm.Kind, Field: fm, formatter: f})
	}
	return cols
}

// Render formats the column's value in rec. Malformed values degrade to
// the placeholder or to their verbatim text.
func (c Column) Render(rec accessor.Record) Cell {
	f := c.formatter
	if f == nil {
		f = NewFormatter("en", "")
	}
	v, ok := accessor.Get(rec, c.Key)
	if !ok || v == nil {
		return Cell{Type: ContentString, Text: Placeholder, Align: AlignLeft}
	}
	if name := c.Field.Display.Format; name != "" {
		if fn, ok := f.format(name); ok {
			return Cell{Type: ContentString, Text: fn(v), Align: AlignLeft}
		}
	}

	if c.Field.Kind == meta.KindList {
		return Cell{Type: ContentString, Tags: listTags(v), Align: AlignLeft}
	}
	switch x := v.(type) {
	case []any:
		return Cell{Type: ContentString, Text: c.joinArray(x), Align: AlignLeft}
	case map[string]any:
		return Cell{Type: ContentString, Text: c.joinArray([]any{x}), Align: AlignLeft}
	case []string:
		return Cell{Type: ContentString, Text: strings.Join(x, ", "), Align: AlignLeft}
	}
	return c.renderScalar(f, v)
}

func (c Column) renderScalar(f *Formatter, v any) Cell {
	ct := DetectContentType(v)
	switch ct {
	case ContentNumber:
		n, _ := toFloat(v)
		d := c.Field.Display
		return Cell{Type: ct, Text: d.Prefix + f.Number(n) + d.Suffix, Align: AlignRight}
	case ContentDate:
		t, ok := toTime(v)
		if !ok {
			return Cell{Type: ct, Text: fmt.Sprint(v), Align: AlignLeft}
		}
		return Cell{Type: ct, Text: t.Format(f.DateLayout), Align: AlignLeft}
	case ContentBoolean:
		b, _ := toBool(v)
		text := glyphFalse
		if b {
			text = glyphTrue
		}
		return Cell{Type: ct, Text: text, Align: AlignCenter}
	}
	text := fmt.Sprint(v)
	for _, opt := range c.Field.Options {
		if opt.Value == text {
			text = opt.Label
			break
		}
	}
	if text == "" {
		text = Placeholder
	}
	return Cell{Type: ct, Text: text, Align: AlignLeft}
}

// joinArray renders related records through the display field.
func (c Column) joinArray(items []any) string {
	key := c.Field.Display.ArrayDisplayField
	if key == "" {
		return Placeholder
	}
	var parts []string
	for _, it := range items {
		switch x := it.(type) {
		case map[string]any:
			if v, ok := accessor.Get(x, key); ok && v != nil {
				parts = append(parts, fmt.Sprint(v))
			}
		case nil:
		default:
			parts = append(parts, fmt.Sprint(x))
		}
	}
	if len(parts) == 0 {
		return Placeholder
	}
	return strings.Join(parts, ", ")
}

// listTags splits list-kind values into tags, skipping empty segments.
func listTags(v any) []string {
	var raw []string
	switch x := v.(type) {
	case string:
		raw = strings.Split(x, ",")
	case []string:
		raw = x
	case []any:
		for _, it := range x {
			raw = append(raw, fmt.Sprint(it))
		}
	default:
		raw = []string{fmt.Sprint(x)}
	}
	tags := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}
	return tags
}

// Row is a rendered record: one cell per column, keyed by field key.
type Row struct {
	ID    string          `json:"id,omitempty"`
	Cells map[string]Cell `json:"cells"`
}

// Rows renders every record through cols.
func Rows(cols []Column, recs []accessor.Record) []Row {
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		r := Row{Cells: make(map[string]Cell, len(cols))}
		if id, ok := rec["id"]; ok && id != nil {
			r.ID = fmt.Sprint(id)
		}
		for _, c := range cols {
			r.Cells[c.Key] = c.Render(rec)
		}
		rows = append(rows, r)
	}
	return rows
}
