package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mesh-intelligence/pantry/internal/inflect"
	"github.com/mesh-intelligence/pantry/internal/memdb"
	"github.com/mesh-intelligence/pantry/internal/paths"
	"github.com/mesh-intelligence/pantry/internal/schemafile"
	"github.com/mesh-intelligence/pantry/pkg/orm"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// session is one invocation's store and schema.
type session struct {
	cfg    types.Config
	store  *memdb.DB
	schema *orm.Schema
	logger *slog.Logger
}

// openSession resolves the config directory, loads the config, registers
// the schema file's models, and seeds the store from the fixtures.
func openSession(flags *rootFlags, stderr io.Writer) (*session, error) {
	logger := flags.newLogger(stderr)

	configDir, err := paths.ResolveConfigDir(flags.configDir, false)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir, flags)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", "dir", configDir, "schema", cfg.Schema, "fixtures", cfg.Fixtures, "identity", cfg.Identity)

	identity, err := memdb.IdentityFor(cfg.Identity)
	if err != nil {
		return nil, err
	}
	store := memdb.New(memdb.WithIdentity(identity), memdb.WithLogger(logger))

	file, err := schemafile.Read(cfg.Schema)
	if err != nil {
		return nil, err
	}
	inflector := inflect.New()
	file.ApplyIrregular(inflector)

	schema, err := orm.NewSchema(store, inflector, orm.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defs, err := file.Definitions()
	if err != nil {
		return nil, err
	}
	if err := schema.RegisterModels(defs); err != nil {
		return nil, fmt.Errorf("register models: %w", err)
	}

	if cfg.Fixtures != "" {
		fx, err := memdb.LoadFixtures(cfg.Fixtures)
		if err != nil {
			return nil, err
		}
		if err := store.LoadData(fx); err != nil {
			return nil, fmt.Errorf("load fixtures: %w", err)
		}
		logger.Debug("fixtures loaded", "tables", len(fx))
	}

	return &session{cfg: cfg, store: store, schema: schema, logger: logger}, nil
}

// withSession opens a session with the command's streams and runs fn.
func withSession(flags *rootFlags, errOut io.Writer, fn func(*session) error) error {
	s, err := openSession(flags, errOut)
	if err != nil {
		return err
	}
	return fn(s)
}
