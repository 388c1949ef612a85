// Package cli implements the pantry command-line interface. Every
// invocation builds a fresh in-memory session from the configured schema
// and fixtures, runs one command against it, and exits.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values shared by every subcommand.
type rootFlags struct {
	configDir string
	schema    string
	fixtures  string
	verbose   bool
	jsonMode  bool
}

// NewRootCmd creates the top-level "pantry" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "pantry",
		Short: "An embedded in-memory ORM you can poke at from the shell",
		Long: "Pantry loads model definitions and seed fixtures into an in-memory store\n" +
			"and lets you query, traverse, and destroy records through the ORM.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: ./.pantry)")
	pf.StringVar(&flags.schema, "schema", "", "model definitions file (overrides config)")
	pf.StringVar(&flags.fixtures, "fixtures", "", "fixtures file or JSONL directory (overrides config)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output to stderr")
	pf.BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(flags),
		newTypesCmd(flags),
		newListCmd(flags),
		newGetCmd(flags),
		newRelatedCmd(flags),
		newDestroyCmd(flags),
		newDumpCmd(flags),
		newExportCmd(flags),
	)
	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pantry:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode maps errors caused by the caller's input to exitUserError and
// everything else to exitSysError.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errUsage),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrModelNotRegistered),
		errors.Is(err, types.ErrInvalidAssociation),
		errors.Is(err, types.ErrWrongKind),
		errors.Is(err, types.ErrIdentityUnknown),
		errors.Is(err, types.ErrSchemaEmpty):
		return exitUserError
	default:
		return exitSysError
	}
}

// errUsage marks malformed command arguments.
var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// newLogger returns a text logger on w: Debug with --verbose, Warn otherwise.
func (f *rootFlags) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
