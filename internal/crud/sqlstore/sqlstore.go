// Package sqlstore persists entity items as JSON documents in a single SQL
// table. Queries are built with ent's SQL builder and run through the ent
// SQLite driver.
package sqlstore

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/backoffice/internal/accessor"
	"github.com/matthewbaird/backoffice/internal/apperr"
	"github.com/matthewbaird/backoffice/internal/crud"
)

const table = "records"

// Store owns the database connection shared by every entity collection.
type Store struct {
	db  *stdsql.DB
	drv *entsql.Driver
	now func() time.Time
}

// Open opens a SQLite database and creates the records table.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open SQLite connection.
func New(db *stdsql.DB) *Store {
	return &Store{db: db, drv: entsql.OpenDB(dialect.SQLite, db), now: time.Now}
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Migrate creates the records table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			entity     TEXT NOT NULL,
			id         TEXT NOT NULL,
			parent_id  TEXT NOT NULL DEFAULT '',
			data       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (entity, id)
		);
		CREATE INDEX IF NOT EXISTS idx_records_entity_parent
			ON records (entity, parent_id);
	`)
	if err != nil {
		return fmt.Errorf("migrating records table: %w", err)
	}
	return nil
}

// Collection returns the CRUD service of one entity. parentKey names the
// foreign-key field used for parent scoping; empty disables it.
func (s *Store) Collection(entity, parentKey string) *Collection {
	return &Collection{store: s, entity: entity, parentKey: parentKey}
}

// Collection is the CRUD service of one entity.
type Collection struct {
	store     *Store
	entity    string
	parentKey string
}

var sortKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (c *Collection) where(f crud.Filters) *entsql.Predicate {
	preds := []*entsql.Predicate{entsql.EQ("entity", c.entity)}
	for _, kv := range f.Equality() {
		if c.parentKey != "" && kv.Key == c.parentKey {
			preds = append(preds, entsql.EQ("parent_id", fmt.Sprint(kv.Value)))
			continue
		}
		if !sortKeyPattern.MatchString(kv.Key) {
			continue
		}
		preds = append(preds, entsql.ExprP("CAST(json_extract(data, ?) AS TEXT) = ?", jsonPath(kv.Key), filterText(kv.Value)))
	}
	if q := f.Search(); q != "" {
		preds = append(preds, entsql.ExprP("LOWER(data) LIKE ?", "%"+strings.ToLower(q)+"%"))
	}
	return entsql.And(preds...)
}

func jsonPath(key string) string {
	return "$." + key
}

// filterText renders a filter value the way SQLite casts the JSON value.
func filterText(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		switch x {
		case "true":
			return "1"
		case "false":
			return "0"
		}
	}
	return fmt.Sprint(v)
}

func (c *Collection) FetchItems(ctx context.Context, f crud.Filters) (*crud.ListResult, error) {
	b := builder()
	count := b.Select(entsql.Count("*")).From(b.Table(table)).Where(c.where(f))
	query, args := count.Query()
	var total int
	if err := c.store.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting %s: %w", c.entity, err)
	}

	sel := b.Select("data").From(b.Table(table)).Where(c.where(f))
	if key, desc := f.Sort(); key != "" && sortKeyPattern.MatchString(key) {
		order := fmt.Sprintf("json_extract(data, '%s')", jsonPath(key))
		if desc {
			order += " DESC"
		}
		sel.OrderBy(order)
	} else {
		sel.OrderBy(entsql.Asc("rowid"))
	}
	page, limit := f.Page(), f.Limit()
	if limit > 0 {
		if page < 1 {
			page = 1
		}
		sel.Limit(limit).Offset((page - 1) * limit)
	}

	items, err := c.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	meta := &crud.PageMeta{Total: total, TotalPages: 1}
	if limit > 0 {
		meta = &crud.PageMeta{Total: total, TotalPages: crud.TotalPages(total, limit), Page: page, Limit: limit}
	}
	return &crud.ListResult{Data: items, Meta: meta}, nil
}

func (c *Collection) query(ctx context.Context, sel *entsql.Selector) ([]crud.Record, error) {
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := c.store.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("querying %s: %w", c.entity, err)
	}
	defer rows.Close()

	items := []crud.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", c.entity, err)
		}
		var rec crud.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", c.entity, err)
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// Get returns one item by id.
func (c *Collection) Get(ctx context.Context, id string) (crud.Record, error) {
	return c.get(ctx, id, "")
}

func (c *Collection) get(ctx context.Context, id, parentID string) (crud.Record, error) {
	b := builder()
	preds := []*entsql.Predicate{entsql.EQ("entity", c.entity), entsql.EQ("id", id)}
	if parentID != "" {
		preds = append(preds, entsql.EQ("parent_id", parentID))
	}
	items, err := c.query(ctx, b.Select("data").From(b.Table(table)).Where(entsql.And(preds...)))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NewNotFound(c.entity, id)
	}
	return items[0], nil
}

func (c *Collection) CreateItem(ctx context.Context, item crud.Record) (crud.Record, error) {
	rec := accessor.Clone(item)
	if rec == nil {
		rec = crud.Record{}
	}
	id := crud.IDOf(rec)
	if id == "" {
		id = uuid.NewString()
	}
	rec["id"] = id
	ts := c.store.now().UTC().Format(time.RFC3339)
	rec["createdAt"] = ts
	rec["updatedAt"] = ts

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, apperr.NewValidation("", err.Error())
	}
	query, args := builder().Insert(table).
		Columns("entity", "id", "parent_id", "data", "created_at", "updated_at").
		Values(c.entity, id, c.parentOf(rec), string(data), ts, ts).
		Query()
	var res stdsql.Result
	if err := c.store.drv.Exec(ctx, query, args, &res); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.NewConflict(c.entity, "id", id)
		}
		return nil, fmt.Errorf("inserting %s: %w", c.entity, err)
	}
	return roundTrip(rec)
}

func (c *Collection) UpdateItem(ctx context.Context, id string, patch crud.Record) (crud.Record, error) {
	return c.update(ctx, id, patch, "")
}

func (c *Collection) DeleteItem(ctx context.Context, id string) error {
	return c.delete(ctx, id, "")
}

// SupportsParentScope reports whether the collection has a parent key.
func (c *Collection) SupportsParentScope() bool { return c.parentKey != "" }

// UpdateItemInScope updates id only if it belongs to parentID.
func (c *Collection) UpdateItemInScope(ctx context.Context, id string, patch crud.Record, parentID string) (crud.Record, error) {
	return c.update(ctx, id, patch, parentID)
}

// DeleteItemInScope deletes id only if it belongs to parentID.
func (c *Collection) DeleteItemInScope(ctx context.Context, id, parentID string) error {
	return c.delete(ctx, id, parentID)
}

func (c *Collection) update(ctx context.Context, id string, patch crud.Record, parentID string) (crud.Record, error) {
	rec, err := c.get(ctx, id, parentID)
	if err != nil {
		return nil, err
	}
	for k, v := range accessor.Flatten(patch) {
		if k == "id" || k == "createdAt" {
			continue
		}
		accessor.Set(rec, k, v)
	}
	ts := c.store.now().UTC().Format(time.RFC3339)
	rec["updatedAt"] = ts
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, apperr.NewValidation("", err.Error())
	}

	query, args := builder().Update(table).
		Set("data", string(data)).
		Set("parent_id", c.parentOf(rec)).
		Set("updated_at", ts).
		Where(entsql.And(entsql.EQ("entity", c.entity), entsql.EQ("id", id))).
		Query()
	var res stdsql.Result
	if err := c.store.drv.Exec(ctx, query, args, &res); err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", c.entity, id, err)
	}
	return rec, nil
}

func (c *Collection) delete(ctx context.Context, id, parentID string) error {
	preds := []*entsql.Predicate{entsql.EQ("entity", c.entity), entsql.EQ("id", id)}
	if parentID != "" {
		preds = append(preds, entsql.EQ("parent_id", parentID))
	}
	query, args := builder().Delete(table).Where(entsql.And(preds...)).Query()
	var res stdsql.Result
	if err := c.store.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("deleting %s %s: %w", c.entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", c.entity, id, err)
	}
	if n == 0 {
		return apperr.NewNotFound(c.entity, id)
	}
	return nil
}

func (c *Collection) parentOf(rec crud.Record) string {
	if c.parentKey == "" {
		return ""
	}
	v, ok := accessor.Get(rec, c.parentKey)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// roundTrip returns rec as it will read back from the database, so numbers
// come back as float64 on create just as they do on fetch.
func roundTrip(rec crud.Record) (crud.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var out crud.Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
