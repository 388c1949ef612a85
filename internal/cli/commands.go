package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/orm"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// associationInfo is the JSON shape of one association in "pantry types".
type associationInfo struct {
	Key         string `json:"key"`
	Kind        string `json:"kind"`
	Model       string `json:"model"`
	ForeignKey  string `json:"foreignKey"`
	Holder      string `json:"holder,omitempty"`
	Inverse     string `json:"inverse,omitempty"`
	Polymorphic bool   `json:"polymorphic,omitempty"`
}

func newTypesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered models and their associations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(flags, cmd.ErrOrStderr(), func(s *session) error {
				out := cmd.OutOrStdout()
				all := make(map[string][]associationInfo)
				for _, name := range s.schema.ModelNames() {
					assocs, err := s.schema.AssociationsFor(name)
					if err != nil {
						return err
					}
					infos := make([]associationInfo, 0, len(assocs))
					for _, key := range sortedKeys(assocs) {
						infos = append(infos, describe(s.schema, assocs[key]))
					}
					all[name] = infos

					if !flags.jsonMode {
						fmt.Fprintf(out, "%s (%s)\n", name, s.schema.TableName(name))
						for _, key := range sortedKeys(assocs) {
							fmt.Fprintf(out, "  %s\n", assocs[key])
						}
					}
				}
				if flags.jsonMode {
					return printJSON(out, all)
				}
				return nil
			})
		},
	}
}

func describe(schema *orm.Schema, a *orm.Association) associationInfo {
	info := associationInfo{
		Key:         a.Key,
		Kind:        a.Kind.String(),
		Model:       a.ModelName,
		ForeignKey:  a.ForeignKey,
		Holder:      a.Holder,
		Polymorphic: a.Polymorphic,
	}
	// An ambiguous inverse is reported by reads; here it is left blank.
	if inv, err := schema.InverseFor(a); err == nil && inv != nil {
		info.Inverse = inv.Key
	}
	return info
}

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <type> [key=value...]",
		Short: "List records of a type with optional filters",
		Long: `List queries records of the given model type. Filters are key=value pairs
and are ANDed together. Values that parse as JSON are compared as such,
and a belongs-to key may be filtered by null.

Example:
  pantry list post
  pantry list posts authorId=1
  pantry list comment postId=null`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseFilters(args[1:])
			if err != nil {
				return err
			}
			return withSession(flags, cmd.ErrOrStderr(), func(s *session) error {
				found, err := s.schema.Where(s.schema.ToModelName(args[0]), q)
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), flags.jsonMode, found.ToJSON())
			})
		},
	}
}

// parseFilters turns key=value arguments into a query. Values are decoded
// as JSON when possible and kept as raw strings otherwise.
func parseFilters(args []string) (types.Query, error) {
	q := make(types.Query, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, usageError("invalid filter %q (expected key=value)", arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		q[key] = parsed
	}
	return q, nil
}

func newGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(flags, cmd.ErrOrStderr(), func(s *session) error {
				m, err := s.schema.Find(s.schema.ToModelName(args[0]), args[1])
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), flags.jsonMode, []types.Record{m.ToJSON()})
			})
		},
	}
}

func newRelatedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "related <type> <id> <association>",
		Short: "Show the records an association points at",
		Long: `Related follows one association of a record. A belongs-to association
prints its parent (nothing when unset); a has-many association prints
its children.

Example:
  pantry related post 1 author
  pantry related user 1 posts`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(flags, cmd.ErrOrStderr(), func(s *session) error {
				m, err := s.schema.Find(s.schema.ToModelName(args[0]), args[1])
				if err != nil {
					return err
				}
				a, ok := m.Associations()[args[2]]
				if !ok {
					return fmt.Errorf("%w: %s has no association %q", types.ErrInvalidAssociation, m.ModelName(), args[2])
				}

				var records []types.Record
				switch a.Kind {
				case orm.KindBelongsTo:
					parent, err := m.Parent(a.Key)
					if err != nil {
						return err
					}
					if parent != nil {
						records = append(records, parent.ToJSON())
					}
				default:
					kids, err := m.Children(a.Key)
					if err != nil {
						return err
					}
					records = kids.ToJSON()
				}
				return printRecords(cmd.OutOrStdout(), flags.jsonMode, records)
			})
		},
	}
}

func newDestroyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <type> <id>",
		Short: "Destroy a record and print the store afterwards",
		Long: `Destroy removes a record, clearing every foreign key that pointed at it,
then prints the resulting store so the cleanup can be inspected. The
in-memory store is discarded when the command exits.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(flags, cmd.ErrOrStderr(), func(s *session) error {
				m, err := s.schema.Find(s.schema.ToModelName(args[0]), args[1])
				if err != nil {
					return err
				}
				if err := m.Destroy(); err != nil {
					return fmt.Errorf("destroy %s: %w", m, err)
				}
				s.logger.Debug("destroyed", "model", m.String())
				return printDump(cmd.OutOrStdout(), flags.jsonMode, s.store.Dump())
			})
		},
	}
}

func newDumpCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every table after fixtures are loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(flags, cmd.ErrOrStderr(), func(s *session) error {
				return printDump(cmd.OutOrStdout(), flags.jsonMode, s.store.Dump())
			})
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
