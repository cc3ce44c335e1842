package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tordrt/attrtables"
	"github.com/tordrt/attrtables/internal/config"
	"github.com/tordrt/attrtables/internal/formatter"
)

type globalFlags struct {
	dbURL      string
	mysqlURL   string
	sqlitePath string
	configPath string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "attrtables",
		Short: "Manage attribute value tables",
		Long: `attrtables stores per-entity attribute values in a small set of wide tables
in PostgreSQL, MySQL or SQLite. Attributes are packed into tables under a column
budget; each value carries the id of the computation that produced it.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.dbURL, "db-url", "", "PostgreSQL connection string")
	pf.StringVar(&g.mysqlURL, "mysql-url", "", "MySQL connection string")
	pf.StringVar(&g.sqlitePath, "sqlite", "", "SQLite database file path")
	pf.StringVar(&g.configPath, "config", "", "Config file (toml, yaml or json)")

	rootCmd.AddCommand(
		newCreateCmd(g),
		newDestroyCmd(g),
		newCheckCmd(g),
		newDescribeCmd(g),
		newLoadCmd(g),
		newQueryCmd(g),
		newUnsetCmd(g),
		newCreateTableCmd(g),
		newDropTableCmd(g),
		newDropAllCmd(g),
	)
	return rootCmd
}

// databaseURL picks the database from the flags, falling back to the
// configured URL
func (g *globalFlags) databaseURL(cfg *config.Config) (string, error) {
	var urls []string
	if g.dbURL != "" {
		urls = append(urls, g.dbURL)
	}
	if g.mysqlURL != "" {
		u := g.mysqlURL
		if !strings.HasPrefix(u, "mysql://") {
			u = "mysql://" + u
		}
		urls = append(urls, u)
	}
	if g.sqlitePath != "" {
		urls = append(urls, "sqlite://"+g.sqlitePath)
	}

	switch len(urls) {
	case 0:
		if cfg.Database.URL != "" {
			return cfg.Database.URL, nil
		}
		return "", errors.WithHint(
			errors.New("no database given"),
			"use one of --db-url, --mysql-url or --sqlite, or set database.url")
	case 1:
		return urls[0], nil
	default:
		return "", errors.New("only one of --db-url, --mysql-url, or --sqlite can be specified")
	}
}

// open loads the configuration and opens the tables. The returned function
// releases the connection and flushes the logger.
func (g *globalFlags) open(ctx context.Context) (*attrtables.Tables, func(), error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	url, err := g.databaseURL(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}

	tables, err := attrtables.Open(ctx, url, cfg.Options(logger))
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	closeFn := func() {
		if err := tables.Close(); err != nil {
			pterm.Warning.Printf("failed to close database connection: %v\n", err)
		}
		_ = logger.Sync()
	}
	return tables, closeFn, nil
}

// withTables runs fn against opened tables
func (g *globalFlags) withTables(cmd *cobra.Command, fn func(ctx context.Context, tables *attrtables.Tables) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tables, closeFn, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, tables)
}

func newCreateCmd(g *globalFlags) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "create NAME DATATYPE",
		Short: "Create an attribute",
		Long: `Create an attribute with a datatype specification such as Integer,
"String(64)[3]" or "Integer;Float", optionally in a computation group.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				if err := tables.CreateAttribute(ctx, args[0], args[1], group); err != nil {
					return err
				}
				tn, _ := tables.AttributeTable(args[0])
				pterm.Success.Printf("Created attribute %s in %s\n", args[0], tn)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "Computation group")
	return cmd
}

func newDestroyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy NAME...",
		Short: "Destroy attributes and their values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				for _, name := range args {
					if err := tables.DestroyAttribute(ctx, name); err != nil {
						return err
					}
					pterm.Success.Printf("Destroyed attribute %s\n", name)
				}
				return nil
			})
		},
	}
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check value tables against the attribute definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				if err := tables.CheckConsistency(ctx); err != nil {
					return err
				}
				pterm.Success.Printf("%d attributes in %d tables are consistent\n",
					len(tables.AttributeNames()), len(tables.TableSuffixes()))
				return nil
			})
		},
	}
}

func newDescribeCmd(g *globalFlags) *cobra.Command {
	var format, outputFile, outputDir string
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe the table layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir != "" && outputFile != "" {
				return errors.New("cannot use both --output-dir and --output flags")
			}
			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				layout, err := tables.Describe(ctx)
				if err != nil {
					return err
				}
				if outputDir != "" {
					if err := formatter.NewMultiFileFormatter(outputDir, format).Format(layout); err != nil {
						return errors.Wrap(err, "failed to format output")
					}
					pterm.Success.Printf("Wrote %d table files to %s\n", len(layout.Tables), outputDir)
					return nil
				}

				w := cmd.OutOrStdout()
				if outputFile != "" {
					f, err := os.Create(outputFile)
					if err != nil {
						return errors.Wrap(err, "failed to create output file")
					}
					defer func() {
						if err := f.Close(); err != nil {
							pterm.Warning.Printf("failed to close output file: %v\n", err)
						}
					}()
					w = f
				}
				f, err := formatter.New(format, w)
				if err != nil {
					return err
				}
				return errors.Wrap(f.Format(layout), "failed to format output")
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatter.FormatText, "Output format: text or markdown")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for one file per table")
	return cmd
}

func newLoadCmd(g *globalFlags) *cobra.Command {
	var computationID, attributes, delimiter, nullMarker string
	cmd := &cobra.Command{
		Use:   "load [FILE]",
		Short: "Bulk load the values of a computation",
		Long: `Load delimited rows of "entity_id value..." for the attributes given with
--attributes, reading FILE or stdin. The values follow the value columns of
the attributes in order. Empty trailing fields and the null marker keep the
stored value.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := splitList(attributes)
			if len(names) == 0 {
				return errors.New("--attributes is required")
			}
			id, generated, err := parseComputationID(computationID)
			if err != nil {
				return err
			}
			opts := &attrtables.LoadOptions{NullMarker: nullMarker}
			if delimiter != "" {
				r := []rune(delimiter)
				if len(r) != 1 {
					return errors.Newf("delimiter must be a single character, got %q", delimiter)
				}
				opts.Delimiter = r[0]
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "failed to open input file")
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				n, err := tables.LoadComputation(ctx, id, names, in, opts)
				if err != nil {
					return err
				}
				if generated {
					pterm.Info.Printf("Computation id %s\n", id)
				}
				pterm.Success.Printf("Loaded %d rows for %s\n", n, strings.Join(names, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&computationID, "computation-id", "c", "", "Computation id (UUID, generated if empty)")
	cmd.Flags().StringVarP(&attributes, "attributes", "a", "", "Attributes (comma-separated)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "Field delimiter (default: tab)")
	cmd.Flags().StringVar(&nullMarker, "null", "", `Null marker (default: \N)`)
	return cmd
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "query NAME [ENTITY...]",
		Short: "Print the values of an attribute",
		Long: `Print the values of an attribute as tab separated lines of entity id,
values and computation id. Without entities all stored values are printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entities []string
			if len(args) > 1 {
				entities = args[1:]
			}
			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				results, err := tables.QueryAttribute(ctx, args[0], entities)
				if err != nil {
					return err
				}
				return writeResults(cmd.OutOrStdout(), results)
			})
		},
	}
}

func newUnsetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unset NAME ENTITY...",
		Short: "Clear the values of an attribute for entities",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				if err := tables.UnsetAttribute(ctx, args[0], args[1:]); err != nil {
					return err
				}
				pterm.Success.Printf("Unset %s for %d entities\n", args[0], len(args)-1)
				return nil
			})
		},
	}
}

func newCreateTableCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create-table SUFFIX",
		Short: "Create an empty value table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				if err := tables.CreateTable(ctx, args[0]); err != nil {
					return err
				}
				pterm.Success.Printf("Created table %s\n", tables.TableName(attrtables.NormalizeSuffix(args[0])))
				return nil
			})
		},
	}
}

func newDropTableCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "drop-table SUFFIX",
		Short: "Drop a value table",
		Long: `Drop a value table. The definitions of its attributes are kept, so
check reports them until they are destroyed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				if err := tables.DropTable(ctx, args[0]); err != nil {
					return err
				}
				pterm.Success.Printf("Dropped table %s\n", tables.TableName(attrtables.NormalizeSuffix(args[0])))
				return nil
			})
		},
	}
}

func newDropAllCmd(g *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop-all",
		Short: "Drop all value tables and the attribute definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.WithHint(errors.New("refusing to drop all tables"), "pass --yes to confirm")
			}
			return g.withTables(cmd, func(ctx context.Context, tables *attrtables.Tables) error {
				n := len(tables.TableSuffixes())
				if err := tables.DropAll(ctx); err != nil {
					return err
				}
				pterm.Success.Printf("Dropped %d tables\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm dropping everything")
	return cmd
}

// parseComputationID parses s as a UUID, generating one if s is empty
func parseComputationID(s string) (uuid.UUID, bool, error) {
	if s == "" {
		return uuid.New(), true, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false, errors.Wrapf(err, "invalid computation id %q", s)
	}
	return id, false, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeResults(w io.Writer, results map[string]attrtables.Result) error {
	for _, entity := range slices.Sorted(maps.Keys(results)) {
		r := results[entity]
		fields := make([]string, 0, len(r.Values)+2)
		fields = append(fields, entity)
		for _, v := range r.Values {
			fields = append(fields, formatValue(v))
		}
		fields = append(fields, formatComputationID(r.ComputationID))
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return `\N`
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// formatComputationID renders 16-byte ids as UUIDs
func formatComputationID(v any) string {
	if b, ok := v.([]byte); ok && len(b) == 16 {
		if id, err := uuid.FromBytes(b); err == nil {
			return id.String()
		}
	}
	return formatValue(v)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Printf("%v\n", err)
		if hints := errors.GetAllHints(err); len(hints) > 0 {
			pterm.Info.Println(strings.Join(hints, "\n"))
		}
		os.Exit(1)
	}
}
