package memdb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// readJSONL reads a JSONL file into records. Empty and malformed lines are
// skipped so a partially written file still loads.
func readJSONL(path string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []types.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		rec, err := decodeRecord(line)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// decodeRecord decodes one JSON object, keeping numbers as json.Number so
// ids survive with their textual form.
func decodeRecord(data []byte) (types.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec types.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	normalizeRecord(rec)
	return rec, nil
}
