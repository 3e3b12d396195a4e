package crud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilters_Canonical(t *testing.T) {
	a := Filters{"page": 1, "status": "draft"}
	b := Filters{}
	b["status"] = "draft"
	b["page"] = "1"
	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.NotEqual(t, a.Canonical(), Filters{"page": 2, "status": "draft"}.Canonical())
	assert.Equal(t, "{}", Filters(nil).Canonical())
}

func TestFilters_Accessors(t *testing.T) {
	f := Filters{"page": "3", "sort": "title", "order": "DESC", "q": " du ", "movieId": "m1"}
	assert.Equal(t, 3, f.Page())
	assert.Equal(t, DefaultLimit, f.Limit())
	key, desc := f.Sort()
	assert.Equal(t, "title", key)
	assert.True(t, desc)
	assert.Equal(t, "du", f.Search())
	assert.Equal(t, []KeyValue{{Key: "movieId", Value: "m1"}}, f.Equality())

	g := f.With("movieId", "m2")
	assert.Equal(t, "m1", f["movieId"])
	assert.Equal(t, "m2", g["movieId"])
}

func TestMatches(t *testing.T) {
	rec := Record{"id": 7, "address": map[string]any{"city": "Lyon"}, "title": "Le Samouraï"}
	assert.True(t, Matches(rec, Filters{"id": "7"}))
	assert.True(t, Matches(rec, Filters{"address.city": "Lyon"}))
	assert.False(t, Matches(rec, Filters{"address.city": "Paris"}))
	assert.True(t, Matches(rec, Filters{"q": "samou"}))
	assert.False(t, Matches(rec, Filters{"q": "dune"}))
}

func TestPaginate(t *testing.T) {
	items := []Record{{"n": 3}, {"n": 1}, {"n": 2}}
	res := Paginate(items, Filters{"sort": "n", "order": "desc", "limit": 2})
	assert.Equal(t, []Record{{"n": 3}, {"n": 2}}, res.Data)
	assert.Equal(t, 2, res.Meta.TotalPages)

	res = Paginate([]Record{{"n": 1}}, Filters{"page": 9, "limit": 5})
	assert.Empty(t, res.Data)
	assert.Equal(t, 1, TotalPages(0, 5))
}

func TestIDOf(t *testing.T) {
	assert.Equal(t, "42", IDOf(Record{"id": 42}))
	assert.Equal(t, "abc", IDOf(Record{"id": "abc"}))
	assert.Equal(t, "", IDOf(Record{}))
	assert.Equal(t, "", IDOf(nil))
}

func TestDecodeList(t *testing.T) {
	res, err := DecodeList([]byte(`[{"id":"1"},{"id":"2"}]`))
	assert.NoError(t, err)
	assert.Len(t, res.Data, 2)
	assert.Nil(t, res.Meta)

	res, err = DecodeList([]byte(`{"data":[{"id":"1"}],"meta":{"total":9,"totalPages":5}}`))
	assert.NoError(t, err)
	assert.Len(t, res.Data, 1)
	assert.Equal(t, 9, res.Meta.Total)

	res, err = DecodeList([]byte(`{}`))
	assert.NoError(t, err)
	assert.Empty(t, res.Data)

	_, err = DecodeList([]byte(`nope`))
	assert.Error(t, err)
}
