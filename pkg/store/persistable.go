package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/richard-senior/leaguesim/internal/logger"
	"github.com/richard-senior/leaguesim/pkg/config"
	_ "modernc.org/sqlite"
)

var (
	db   *sql.DB
	dbMu sync.Mutex
)

// ErrNotFound is returned when a primary key lookup matches nothing
var ErrNotFound = errors.New("record not found")

// Persistable is implemented by every struct stored through this package.
// Columns come from struct tags: column, dbtype, primary, index, fk, persist:"false".
type Persistable interface {
	GetTableName() string
	GetPrimaryKey() map[string]any
	BeforeSave() error
	AfterSave() error
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

/////////////////////////////////////////////////////////////////////////
////// Connection
/////////////////////////////////////////////////////////////////////////

// InitDatabase opens (or reopens) the database at path and creates the schema.
// ":memory:" gives a private in-memory database.
func InitDatabase(path string) error {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db != nil {
		_ = db.Close()
		db = nil
	}
	d, err := openDatabase(path)
	if err != nil {
		return err
	}
	db = d
	return nil
}

// GetDB returns the open database, opening the configured one on first use
func GetDB() (*sql.DB, error) {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db == nil {
		d, err := openDatabase(config.GetDatabasePath())
		if err != nil {
			return nil, err
		}
		db = d
	}
	return db, nil
}

func CloseDatabase() error {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

func openDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps an in-memory database alive and serialises writers
	d.SetMaxOpenConns(1)
	if err = d.Ping(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, obj := range schema() {
		if err := createTable(d, obj); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	logger.Info("Database initialised", path)
	return d, nil
}

/////////////////////////////////////////////////////////////////////////
////// Schema
/////////////////////////////////////////////////////////////////////////

type column struct {
	name    string
	dbType  string
	primary bool
	index   bool
	fk      string
	field   int
}

// columns reads the persisted fields of a struct type in declaration order
func columns(t reflect.Type) []column {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var ret []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("persist") == "false" {
			continue
		}
		dbType := f.Tag.Get("dbtype")
		if dbType == "" {
			continue
		}
		name := f.Tag.Get("column")
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		ret = append(ret, column{
			name:    name,
			dbType:  dbType,
			primary: f.Tag.Get("primary") == "true",
			index:   f.Tag.Get("index") == "true",
			fk:      f.Tag.Get("fk"),
			field:   i,
		})
	}
	return ret
}

func createTableSQL(obj Persistable) string {
	var defs, primary []string
	var fks []string
	for _, c := range columns(reflect.TypeOf(obj)) {
		defs = append(defs, c.name+" "+c.dbType)
		if c.primary {
			primary = append(primary, c.name)
		}
		// fk tag is "table.column"
		if parts := strings.Split(c.fk, "."); len(parts) == 2 {
			fks = append(fks, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE CASCADE", c.name, parts[0], parts[1]))
		}
	}
	if len(primary) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primary, ", ")))
	}
	defs = append(defs, fks...)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", obj.GetTableName(), strings.Join(defs, ", "))
}

func createTable(d *sql.DB, obj Persistable) error {
	table := obj.GetTableName()
	query := createTableSQL(obj)
	logger.Debug("Creating table with SQL", query)
	if _, err := d.Exec(query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	for _, c := range columns(reflect.TypeOf(obj)) {
		if !c.index {
			continue
		}
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", table, c.name, table, c.name)
		if _, err := d.Exec(idx); err != nil {
			logger.Warn("Failed to create index", idx, err)
		}
	}
	return nil
}

// CreateTable creates the table for obj if it does not already exist
func CreateTable(obj Persistable) error {
	d, err := GetDB()
	if err != nil {
		return err
	}
	return createTable(d, obj)
}

/////////////////////////////////////////////////////////////////////////
////// Reading and writing
/////////////////////////////////////////////////////////////////////////

func values(obj any, includePrimary bool) ([]string, []any) {
	v := reflect.Indirect(reflect.ValueOf(obj))
	var names []string
	var vals []any
	for _, c := range columns(v.Type()) {
		if c.primary && !includePrimary {
			continue
		}
		names = append(names, c.name)
		vals = append(vals, v.Field(c.field).Interface())
	}
	return names, vals
}

func destinations(obj any) ([]string, []any) {
	v := reflect.Indirect(reflect.ValueOf(obj))
	var names []string
	var dest []any
	for _, c := range columns(v.Type()) {
		names = append(names, c.name)
		dest = append(dest, v.Field(c.field).Addr().Interface())
	}
	return names, dest
}

func whereClause(key map[string]any) (string, []any) {
	var conds []string
	var vals []any
	for col, val := range key {
		conds = append(conds, col+" = ?")
		vals = append(vals, val)
	}
	return strings.Join(conds, " AND "), vals
}

func exists(q querier, obj Persistable) (bool, error) {
	where, args := whereClause(obj.GetPrimaryKey())
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", obj.GetTableName(), where)
	if err := q.QueryRow(query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence in %s: %w", obj.GetTableName(), err)
	}
	return count > 0, nil
}

func save(q querier, obj Persistable) error {
	if err := obj.BeforeSave(); err != nil {
		return fmt.Errorf("before save hook failed: %w", err)
	}
	found, err := exists(q, obj)
	if err != nil {
		return err
	}
	table := obj.GetTableName()
	var query string
	var args []any
	if found {
		names, vals := values(obj, false)
		sets := make([]string, len(names))
		for i, n := range names {
			sets[i] = n + " = ?"
		}
		where, keyArgs := whereClause(obj.GetPrimaryKey())
		query = fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), where)
		args = append(vals, keyArgs...)
	} else {
		names, vals := values(obj, true)
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), marks)
		args = vals
	}
	logger.Debug("Save SQL", query)
	if _, err := q.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to save to %s: %w", table, err)
	}
	if err := obj.AfterSave(); err != nil {
		return fmt.Errorf("after save hook failed: %w", err)
	}
	return nil
}

// Save inserts obj or updates the row with the same primary key
func Save(obj Persistable) error {
	d, err := GetDB()
	if err != nil {
		return err
	}
	return save(d, obj)
}

// Exists reports whether a row with obj's primary key is stored
func Exists(obj Persistable) (bool, error) {
	d, err := GetDB()
	if err != nil {
		return false, err
	}
	return exists(d, obj)
}

// BulkSave saves every object in one transaction, all or nothing
func BulkSave(objects []Persistable) error {
	d, err := GetDB()
	if err != nil {
		return err
	}
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, obj := range objects {
		if err := save(tx, obj); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete removes the row with obj's primary key
func Delete(obj Persistable) error {
	return DeleteWhere(obj, "")
}

// DeleteWhere removes rows of obj's table matching where, or obj's own row when where is empty
func DeleteWhere(obj Persistable, where string, args ...any) error {
	d, err := GetDB()
	if err != nil {
		return err
	}
	if where == "" {
		where, args = whereClause(obj.GetPrimaryKey())
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", obj.GetTableName(), where)
	if _, err := d.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", obj.GetTableName(), err)
	}
	return nil
}

// FindByPrimaryKey fills obj from the row matching its primary key
func FindByPrimaryKey(obj Persistable) error {
	d, err := GetDB()
	if err != nil {
		return err
	}
	names, dest := destinations(obj)
	where, args := whereClause(obj.GetPrimaryKey())
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(names, ", "), obj.GetTableName(), where)
	if err := d.QueryRow(query, args...).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", obj.GetTableName(), ErrNotFound)
		}
		return fmt.Errorf("failed to scan row from %s: %w", obj.GetTableName(), err)
	}
	return nil
}

// FindWhere loads every row of T's table matching where, which may carry ORDER BY and LIMIT
func FindWhere[T any, P interface {
	*T
	Persistable
}](where string, args ...any) ([]P, error) {
	d, err := GetDB()
	if err != nil {
		return nil, err
	}
	var proto P = new(T)
	names, _ := destinations(proto)
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), proto.GetTableName())
	if where != "" {
		query += " WHERE " + where
	}
	logger.Debug("FindWhere SQL", query)

	rows, err := d.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", proto.GetTableName(), err)
	}
	defer rows.Close()

	var ret []P
	for rows.Next() {
		obj := P(new(T))
		_, dest := destinations(obj)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", proto.GetTableName(), err)
		}
		ret = append(ret, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from %s: %w", proto.GetTableName(), err)
	}
	return ret, nil
}

// FindAll loads every row of T's table
func FindAll[T any, P interface {
	*T
	Persistable
}]() ([]P, error) {
	return FindWhere[T, P]("")
}
