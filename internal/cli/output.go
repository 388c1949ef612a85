package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// formatRecord renders a record as "id=1 authorId=2 title=Engines", id
// first and the other fields sorted.
func formatRecord(r types.Record) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k != types.IDField {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(r))
	parts = append(parts, types.IDField+"="+types.Stringify(r[types.IDField]))
	for _, k := range keys {
		parts = append(parts, k+"="+types.Stringify(r[k]))
	}
	return strings.Join(parts, " ")
}

// printRecords writes records as a JSON array or one formatted line each.
func printRecords(w io.Writer, jsonMode bool, records []types.Record) error {
	if jsonMode {
		if records == nil {
			records = []types.Record{}
		}
		return printJSON(w, records)
	}
	for _, r := range records {
		fmt.Fprintln(w, formatRecord(r))
	}
	return nil
}

// printDump writes every table, sorted by name.
func printDump(w io.Writer, jsonMode bool, dump map[string][]types.Record) error {
	if jsonMode {
		return printJSON(w, dump)
	}
	names := make([]string, 0, len(dump))
	for name := range dump {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s (%d)\n", name, len(dump[name]))
		for _, r := range dump[name] {
			fmt.Fprintf(w, "  %s\n", formatRecord(r))
		}
	}
	return nil
}
