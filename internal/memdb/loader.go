package memdb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Fixtures maps table names to the records to load into them.
type Fixtures map[string][]types.Record

// LoadFixtures reads fixtures from path. A directory is read as one
// <table>.jsonl file per table; a .json file holds an object of table name
// to record array; a .yaml or .yml file holds the same shape in YAML.
func LoadFixtures(path string) (Fixtures, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat fixtures: %w", err)
	}
	if info.IsDir() {
		return LoadJSONLDir(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fixtures: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeJSONFixtures(f)
	case ".yaml", ".yml":
		return DecodeYAMLFixtures(f)
	default:
		return nil, fmt.Errorf("unsupported fixtures file %q", path)
	}
}

// DecodeJSONFixtures decodes a JSON object of table name to record array.
func DecodeJSONFixtures(r io.Reader) (Fixtures, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var fx Fixtures
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decoding JSON fixtures: %w", err)
	}
	fx.normalize()
	return fx, nil
}

// DecodeYAMLFixtures decodes a YAML mapping of table name to record list.
func DecodeYAMLFixtures(r io.Reader) (Fixtures, error) {
	var fx Fixtures
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		if err == io.EOF {
			return Fixtures{}, nil
		}
		return nil, fmt.Errorf("decoding YAML fixtures: %w", err)
	}
	fx.normalize()
	return fx, nil
}

// LoadJSONLDir reads every *.jsonl file in dir; the file stem names the
// table.
func LoadJSONLDir(dir string) (Fixtures, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	fx := make(Fixtures, len(matches))
	for _, path := range matches {
		records, err := readJSONL(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), ".jsonl")
		fx[name] = records
	}
	return fx, nil
}

// normalize turns {type, id} objects into types.Ref so fixture rows compare
// the same way as rows written by the ORM.
func (fx Fixtures) normalize() {
	for _, records := range fx {
		for _, r := range records {
			normalizeRecord(r)
		}
	}
}

func normalizeRecord(r types.Record) {
	for k, v := range r {
		m, ok := v.(map[string]any)
		if !ok || len(m) != 2 {
			continue
		}
		if ref, ok := types.AsRef(m); ok {
			r[k] = ref
		}
	}
}
