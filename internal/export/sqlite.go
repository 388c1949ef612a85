// Package export writes one-way snapshots of a store for external tools.
// Nothing in pantry reads an export back.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// ToSQLite writes every table of store into a fresh SQLite database at
// path. Each table gets an id primary key plus one TEXT column per field
// seen in its records. Strings are stored as-is, nil as NULL, and other
// values as JSON. The whole export runs in one transaction.
func ToSQLite(ctx context.Context, store types.Store, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing old export: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning export transaction: %w", err)
	}
	defer tx.Rollback()

	dump := store.Dump()
	names := make([]string, 0, len(dump))
	for name := range dump {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := exportTable(ctx, tx, name, dump[name]); err != nil {
			return fmt.Errorf("exporting %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing export: %w", err)
	}
	return nil
}

func exportTable(ctx context.Context, tx *sql.Tx, name string, records []types.Record) error {
	columns := columnsOf(records)

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quote(c) + " TEXT"
	}
	defs[0] += " PRIMARY KEY"
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(name), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		args := make([]any, len(columns))
		for i, c := range columns {
			v, err := encodeValue(r[c])
			if err != nil {
				return fmt.Errorf("record %s field %s: %w", r.ID(), c, err)
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID(), err)
		}
	}
	return nil
}

// columnsOf returns "id" followed by every other field name in sorted
// order.
func columnsOf(records []types.Record) []string {
	seen := map[string]bool{types.IDField: true}
	var rest []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append([]string{types.IDField}, rest...)
}

func encodeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
