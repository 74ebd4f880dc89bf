// Package repository contains data access logic separated from HTTP handlers.
// Store is the generic table gateway; the per-entity files describe their
// tables and compose the decorators and hooks that apply to them.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tourbook/tours-api/internal/apperror"
	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/query"
)

// ErrNotFound is returned when no row matches an id or query.
var ErrNotFound = errors.New("document not found")

// Column maps a field of T to a column.  Ref returns a pointer into the
// document; it is used as the Scan destination on reads and dereferenced
// for writes.
type Column[T any] struct {
	query.Field
	Ref func(*T) any
	// ReadOnly columns are written on insert only and survive patches.
	ReadOnly bool
}

// Table describes how T is laid out.  The first column is the primary key.
// Extra fields are attributes without a column (populated or computed) that
// callers may still select.
type Table[T any] struct {
	Name     string
	Columns  []Column[T]
	Extra    []query.Field
	Scope    []string
	Virtuals map[string]string
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FindFunc loads the documents matching q.
type FindFunc[T any] func(ctx context.Context, q *query.Query) ([]*T, error)

// Decorator wraps a FindFunc with behavior that applies to every read.
type Decorator[T any] func(next FindFunc[T]) FindFunc[T]

// SaveHook runs before a document is validated and written.
type SaveHook[T any] func(ctx context.Context, doc *T, isNew bool) error

// AfterSaveHook runs inside the write transaction once the row is written.
type AfterSaveHook[T any] func(ctx context.Context, tx Execer, doc *T, isNew bool) error

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithDecorators wraps reads.  The first decorator is the outermost.
func WithDecorators[T any](ds ...Decorator[T]) Option[T] {
	return func(s *Store[T]) { s.decorators = append(s.decorators, ds...) }
}

// WithBeforeSave registers hooks run before validation on every write.
func WithBeforeSave[T any](hooks ...SaveHook[T]) Option[T] {
	return func(s *Store[T]) { s.beforeSave = append(s.beforeSave, hooks...) }
}

// WithAfterSave registers hooks run in the write transaction.
func WithAfterSave[T any](hooks ...AfterSaveHook[T]) Option[T] {
	return func(s *Store[T]) { s.afterSave = append(s.afterSave, hooks...) }
}

// WithValidator replaces model.Validate.
func WithValidator[T any](fn func(*T) error) Option[T] {
	return func(s *Store[T]) { s.validate = fn }
}

// Store implements CRUD for one table.  It is safe for concurrent use.
type Store[T any] struct {
	db         *sql.DB
	table      Table[T]
	byName     map[string]Column[T]
	decorators []Decorator[T]
	beforeSave []SaveHook[T]
	afterSave  []AfterSaveHook[T]
	validate   func(*T) error
	find       FindFunc[T]
}

// NewStore builds a Store for table.
func NewStore[T any](db *sql.DB, table Table[T], opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		db:       db,
		table:    table,
		byName:   make(map[string]Column[T], len(table.Columns)),
		validate: func(doc *T) error { return model.Validate(doc) },
	}
	for _, c := range table.Columns {
		s.byName[c.Name] = c
	}
	for _, o := range opts {
		o(s)
	}
	find := FindFunc[T](s.scan)
	for i := len(s.decorators) - 1; i >= 0; i-- {
		find = s.decorators[i](find)
	}
	s.find = find
	return s
}

// DB exposes the underlying handle for entity specific statements.
func (s *Store[T]) DB() *sql.DB { return s.db }

// Query returns a fresh query over the table with its implicit scope.
func (s *Store[T]) Query() *query.Query {
	fields := make([]query.Field, 0, len(s.table.Columns)+len(s.table.Extra))
	for _, c := range s.table.Columns {
		fields = append(fields, c.Field)
	}
	fields = append(fields, s.table.Extra...)
	q := query.New(s.table.Name, fields, s.table.Scope...)
	for name, dep := range s.table.Virtuals {
		q.Virtual(name, dep)
	}
	return q
}

// fullQuery selects every column and extra field, hidden ones included.
func (s *Store[T]) fullQuery() *query.Query {
	q := s.Query()
	names := make([]string, 0, len(s.table.Columns)+len(s.table.Extra))
	for _, c := range s.table.Columns {
		names = append(names, c.Name)
	}
	for _, f := range s.table.Extra {
		names = append(names, f.Name)
	}
	_ = q.Select(names...)
	return q
}

// rowQuery selects every stored column and no extra field, so populated
// attributes stay unset and after-save hooks can tell whether a patch
// touched them.
func (s *Store[T]) rowQuery() *query.Query {
	q := s.Query()
	names := make([]string, 0, len(s.table.Columns))
	for _, c := range s.table.Columns {
		names = append(names, c.Name)
	}
	_ = q.Select(names...)
	return q
}

func (s *Store[T]) pk() Column[T] { return s.table.Columns[0] }

// Find runs q through the decorated read path.
func (s *Store[T]) Find(ctx context.Context, q *query.Query) ([]*T, error) {
	return s.find(ctx, q)
}

// FindOne returns the first match of q or ErrNotFound.
func (s *Store[T]) FindOne(ctx context.Context, q *query.Query) (*T, error) {
	q.Limit(1, 0)
	docs, err := s.find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// FindByID loads every column of the document with the given id.
func (s *Store[T]) FindByID(ctx context.Context, id string) (*T, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	q := s.fullQuery().Where(s.pk().Column+" = ?", id)
	return s.FindOne(ctx, q)
}

// Get loads the document with the given id using the default projection,
// the way it is shown to clients.
func (s *Store[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.FindOne(ctx, s.Query().Where(s.pk().Column+" = ?", id))
}

// Count returns the number of rows matching q's conditions.
func (s *Store[T]) Count(ctx context.Context, q *query.Query) (int64, error) {
	stmt, args := q.BuildCount()
	var n int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table.Name, err)
	}
	return n, nil
}

// scan is the undecorated read: run the SELECT and scan the projected
// columns into fresh documents.
func (s *Store[T]) scan(ctx context.Context, q *query.Query) ([]*T, error) {
	stmt, args := q.Build()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table.Name, err)
	}
	defer rows.Close()

	fields := q.Fields()
	out := make([]*T, 0)
	for rows.Next() {
		doc := new(T)
		dest := make([]any, 0, len(fields))
		for _, f := range fields {
			if c, ok := s.byName[f.Name]; ok && f.Column != "" {
				dest = append(dest, c.Ref(doc))
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table.Name, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.table.Name, err)
	}
	return out, nil
}

// Insert runs the save hooks, assigns an id when missing, validates and
// writes doc.
func (s *Store[T]) Insert(ctx context.Context, doc *T) error {
	if err := s.prepare(ctx, doc, true); err != nil {
		return err
	}
	idPtr, _ := s.pk().Ref(doc).(*string)
	if idPtr != nil && *idPtr == "" {
		*idPtr = uuid.NewString()
	}
	cols := make([]string, 0, len(s.table.Columns))
	args := make([]any, 0, len(s.table.Columns))
	for _, c := range s.table.Columns {
		cols = append(cols, c.Column)
		args = append(args, valueOf(c.Ref(doc)))
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table.Name, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	return s.write(ctx, doc, true, stmt, args)
}

// Save runs the save hooks, validates and writes every writable column of
// an existing document.
func (s *Store[T]) Save(ctx context.Context, doc *T) error {
	if err := s.prepare(ctx, doc, false); err != nil {
		return err
	}
	sets := make([]string, 0, len(s.table.Columns))
	args := make([]any, 0, len(s.table.Columns)+1)
	for _, c := range s.table.Columns[1:] {
		if c.ReadOnly {
			continue
		}
		sets = append(sets, c.Column+" = ?")
		args = append(args, valueOf(c.Ref(doc)))
	}
	args = append(args, valueOf(s.pk().Ref(doc)))
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", s.table.Name, strings.Join(sets, ", "), s.pk().Column)
	return s.write(ctx, doc, false, stmt, args)
}

func (s *Store[T]) prepare(ctx context.Context, doc *T, isNew bool) error {
	for _, h := range s.beforeSave {
		if err := h(ctx, doc, isNew); err != nil {
			return err
		}
	}
	return s.validate(doc)
}

func (s *Store[T]) write(ctx context.Context, doc *T, isNew bool, stmt string, args []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s write: %w", s.table.Name, err)
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write %s: %w", s.table.Name, err)
	}
	for _, h := range s.afterSave {
		if err := h(ctx, tx, doc, isNew); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s write: %w", s.table.Name, err)
	}
	return nil
}

// UpdateOne merges patch into the document with the given id, validates the
// merged result and writes it.  Keys that are unknown or not writable are
// ignored.  It returns ErrNotFound when no document has that id.
//
// The document is loaded without populated fields: a read-time view of a
// relation must never be written back as its stored value.
func (s *Store[T]) UpdateOne(ctx context.Context, id string, patch map[string]any) (*T, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	doc, err := s.FindOne(ctx, s.rowQuery().Where(s.pk().Column+" = ?", id))
	if err != nil {
		return nil, err
	}
	if err := s.merge(doc, patch); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, doc); err != nil {
		return nil, err
	}
	fresh, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// The patch moved the document out of scope (e.g. made it secret).
		return doc, nil
	}
	return fresh, err
}

// merge overlays patch onto doc through its JSON representation, keeping
// read-only columns unchanged.
func (s *Store[T]) merge(doc *T, patch map[string]any) error {
	keep := make(map[string]reflect.Value)
	for _, c := range s.table.Columns {
		if c.ReadOnly || c.Name == s.pk().Name {
			v := reflect.ValueOf(c.Ref(doc)).Elem()
			saved := reflect.New(v.Type()).Elem()
			saved.Set(v)
			keep[c.Name] = saved
		}
	}
	b, err := json.Marshal(patch)
	if err != nil {
		return apperror.BadRequest("Invalid update body")
	}
	if err := json.Unmarshal(b, doc); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return apperror.Cast(te.Field, fmt.Sprint(patch[te.Field]))
		}
		return apperror.BadRequest("Invalid update body")
	}
	for _, c := range s.table.Columns {
		if saved, ok := keep[c.Name]; ok {
			reflect.ValueOf(c.Ref(doc)).Elem().Set(saved)
		}
	}
	return nil
}

// DeleteOne removes the document with the given id.  Rows outside the
// table's scope are treated as missing.
func (s *Store[T]) DeleteOne(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	conds := append([]string{s.pk().Column + " = ?"}, s.table.Scope...)
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", s.table.Name, strings.Join(conds, " AND "))
	res, err := s.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.table.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.table.Name, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// checkID rejects ids that cannot be primary keys before hitting the DB.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.Cast("id", id)
	}
	return nil
}

// valueOf dereferences a column pointer for use as a statement argument.
func valueOf(ptr any) any {
	return reflect.ValueOf(ptr).Elem().Interface()
}

// Timed logs how long each read took.
func Timed[T any](logf func(table string, rows int, took time.Duration)) Decorator[T] {
	return func(next FindFunc[T]) FindFunc[T] {
		return func(ctx context.Context, q *query.Query) ([]*T, error) {
			start := time.Now()
			docs, err := next(ctx, q)
			logf(q.Table(), len(docs), time.Since(start))
			return docs, err
		}
	}
}

// Populated attaches related data to the documents a read returned.
func Populated[T any](fill func(ctx context.Context, docs []*T, q *query.Query) error) Decorator[T] {
	return func(next FindFunc[T]) FindFunc[T] {
		return func(ctx context.Context, q *query.Query) ([]*T, error) {
			docs, err := next(ctx, q)
			if err != nil || len(docs) == 0 {
				return docs, err
			}
			if err := fill(ctx, docs, q); err != nil {
				return nil, err
			}
			return docs, nil
		}
	}
}

// Computed fills virtual attributes on every document read.
func Computed[T any](fn func(*T)) Decorator[T] {
	return func(next FindFunc[T]) FindFunc[T] {
		return func(ctx context.Context, q *query.Query) ([]*T, error) {
			docs, err := next(ctx, q)
			for _, d := range docs {
				fn(d)
			}
			return docs, err
		}
	}
}
