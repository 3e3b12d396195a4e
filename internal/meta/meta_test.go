package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibilityDefaults(t *testing.T) {
	text := FieldMetadata{Key: "title", Kind: KindText}
	assert.True(t, text.TableVisible())
	assert.True(t, text.FormVisible())
	assert.True(t, text.DetailVisible())

	body := FieldMetadata{Key: "body", Kind: KindRichText}
	assert.False(t, body.TableVisible(), "long-form kinds are hidden from tables")
	assert.True(t, body.FormVisible())

	body.Display.ShowInTable = Bool(true)
	assert.True(t, body.TableVisible(), "explicit flag wins over kind default")
}

func TestEntityConfig_FieldOrdering(t *testing.T) {
	cfg := EntityConfig{Fields: []FieldMetadata{
		{Key: "c", Kind: KindText, Display: Display{Order: 2}},
		{Key: "a", Kind: KindText},
		{Key: "b", Kind: KindText},
		{Key: "notes", Kind: KindTextarea},
		{Key: "id", Kind: KindText, Display: Display{ShowInForm: Bool(false), ShowInTable: Bool(false)}},
	}}

	keys := func(fs []FieldMetadata) []string {
		out := make([]string, len(fs))
		for i, f := range fs {
			out[i] = f.Key
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys(cfg.TableFields()))
	assert.Equal(t, []string{"a", "b", "notes", "c"}, keys(cfg.FormFields()))
	assert.Equal(t, []string{"a", "b", "notes", "id", "c"}, keys(cfg.DetailFields()))

	f, ok := cfg.Field("notes")
	require.True(t, ok)
	assert.Equal(t, KindTextarea, f.Kind)
	_, ok = cfg.Field("missing")
	assert.False(t, ok)
}

func TestCheck(t *testing.T) {
	fields := []FieldMetadata{
		{Key: "name", Kind: KindText},
		{Key: "name", Kind: KindText},
		{Key: "category", Kind: KindRelation},
		{Key: "status", Kind: KindSelect},
		{Key: "rating", Kind: KindNumber, Display: Display{Widget: WidgetRadio}},
		{Key: "owner", Kind: KindText, Relation: &Relation{Entity: "users"}},
		{Key: "weird", Kind: Kind("hologram")},
	}
	errs := Check(fields)
	require.Len(t, errs, 6)

	reasons := make(map[string]string)
	for _, err := range errs {
		var se *ShapeError
		require.ErrorAs(t, err, &se)
		reasons[se.Key+"/"+se.Reason] = se.Error()
	}
	assert.Contains(t, reasons, "name/duplicate key")
	assert.Contains(t, reasons, "category/relation field has no relation descriptor")
	assert.Contains(t, reasons, "status/option field has no options")
	assert.Contains(t, reasons, "rating/option field has no options")
	assert.Contains(t, reasons, "owner/relation descriptor on text field")
	assert.Contains(t, reasons, `weird/unknown kind "hologram"`)

	assert.Empty(t, Check([]FieldMetadata{
		{Key: "status", Kind: KindSelect, Options: StringOptions("draft", "live")},
		{Key: "category", Kind: KindRelation, Relation: &Relation{Entity: "categories"}},
	}))
}
