package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/internal/paths"
	"github.com/mesh-intelligence/pantry/internal/schemafile"
)

// exampleFixtures seeds the example schema written by init.
const exampleFixtures = `users:
  - {id: "1", name: Ada}
  - {id: "2", name: Grace}
posts:
  - {id: "1", title: Engines, authorId: "1"}
  - {id: "2", title: Compilers, authorId: "2"}
comments:
  - {id: "1", text: Nice, postId: "1"}
  - {id: "2", text: Agreed, postId: "1"}
`

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config, schema, and fixtures",
		Long: "Create the configuration directory and write config.yaml, schema.yaml,\n" +
			"and fixtures.yaml into it. Existing files are left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(flags.configDir, true)
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}
			if err := os.MkdirAll(configDir, 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}

			var schema bytes.Buffer
			if err := schemafile.Encode(&schema, schemafile.Example()); err != nil {
				return fmt.Errorf("encode schema: %w", err)
			}

			files := []struct {
				name string
				data []byte
			}{
				{configFileExt, []byte(defaultConfigYAML)},
				{defaultSchemaFile, schema.Bytes()},
				{defaultFixturesFile, []byte(exampleFixtures)},
			}
			for _, f := range files {
				path := filepath.Join(configDir, f.name)
				wrote, err := writeIfMissing(path, f.data)
				if err != nil {
					return fmt.Errorf("write %s: %w", f.name, err)
				}
				if wrote {
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pantry initialized in %s\n", configDir)
			return nil
		},
	}
}

// writeIfMissing creates path with data unless it already exists.
func writeIfMissing(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
