package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeySchema    = "schema"
	cfgKeyFixtures  = "fixtures"
	cfgKeyIdentity  = "identity"
	cfgKeyExportDir = "export_dir"

	defaultSchemaFile   = "schema.yaml"
	defaultFixturesFile = "fixtures.yaml"
)

// defaultConfigYAML is written by "pantry init".
const defaultConfigYAML = `# pantry configuration
# Relative paths resolve against this directory.

# Model definitions (overridable by --schema)
schema: schema.yaml

# Seed data: a .json/.yaml file or a directory of <table>.jsonl files
# (overridable by --fixtures)
fixtures: fixtures.yaml

# Id strategy for new records: counter or uuid
identity: counter

# Default target of "pantry export"
# export_dir:
`

// loadConfig reads config.yaml from configDir with viper, applies flag
// overrides, and resolves relative paths. A missing config.yaml is not an
// error; the defaults apply.
func loadConfig(configDir string, flags *rootFlags) (types.Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeySchema, defaultSchemaFile)
	v.SetDefault(cfgKeyIdentity, types.IdentityCounter)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("pantry")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := types.Config{
		Schema:    v.GetString(cfgKeySchema),
		Fixtures:  v.GetString(cfgKeyFixtures),
		Identity:  v.GetString(cfgKeyIdentity),
		ExportDir: v.GetString(cfgKeyExportDir),
	}
	if flags.schema != "" {
		cfg.Schema = flags.schema
	} else {
		cfg.Schema = resolveAgainst(configDir, cfg.Schema)
	}
	if flags.fixtures != "" {
		cfg.Fixtures = flags.fixtures
	} else {
		cfg.Fixtures = resolveAgainst(configDir, cfg.Fixtures)
	}
	cfg.ExportDir = resolveAgainst(configDir, cfg.ExportDir)

	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config %s: %w", filepath.Join(configDir, configFileExt), err)
	}
	return cfg, nil
}

func resolveAgainst(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
