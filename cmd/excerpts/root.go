package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/excerpts-mcp/internal/config"
	"github.com/dshills/excerpts-mcp/internal/importer"
	"github.com/dshills/excerpts-mcp/internal/logger"
	"github.com/dshills/excerpts-mcp/internal/mcp"
	"github.com/dshills/excerpts-mcp/internal/storage"
)

type app struct {
	configPath string
	notebook   string
	logLevel   string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "excerpts",
		Short:         "Excerpt notebooks with tags, served over MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVarP(&a.notebook, "notebook", "n", "", "notebook name in the notebook directory")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.serveCmd(),
		a.importCmd(),
		a.exportCmd(),
		a.resetCmd(),
		a.tagsCmd(),
		a.searchCmd(),
		a.notebooksCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.notebook != "" {
		cfg.Notebook = a.notebook
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.cfg = cfg
	a.logger = log
	return nil
}

// withStore opens the selected notebook, runs fn and commits
func (a *app) withStore(ctx context.Context, fn func(*storage.Store) error) error {
	if err := a.cfg.EnsureNotebookDir(); err != nil {
		return err
	}
	path, err := a.cfg.NotebookPath("")
	if err != nil {
		return err
	}
	st, err := storage.Open(ctx, path, storage.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := fn(st); err != nil {
		_ = st.Rollback()
		return err
	}
	return st.Commit()
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Info("excerpts MCP server starting",
				zap.String("version", version),
				zap.String("build_mode", storage.BuildMode),
				zap.String("driver", storage.DriverName))

			server, err := mcp.NewServer(a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("received signal, shutting down")
			case err := <-errChan:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import plain-text excerpt files, or a JSON export with --json",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(st *storage.Store) error {
				imp := importer.New(st, a.logger)
				total := &importer.Statistics{}
				if asJSON {
					for _, path := range args {
						stats, err := imp.ImportJSONFile(ctx, path)
						if err != nil {
							return fmt.Errorf("%s: %w", path, err)
						}
						total.TagsImported += stats.TagsImported
						total.ExcerptsImported += stats.ExcerptsImported
						total.Duration += stats.Duration
					}
				} else {
					stats, err := imp.ImportTextFiles(ctx, args, &importer.Config{Workers: a.cfg.Import.Workers})
					if err != nil {
						return err
					}
					total = stats
				}
				return printJSON(cmd.OutOrStdout(), total)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "files are JSON exports")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write the notebook to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(st *storage.Store) error {
				snap, err := importer.New(st, a.logger).Export(cmd.Context(), path)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d tags and %d excerpts to %s\n",
					len(snap.Tags), len(snap.Excerpts), path)
				return err
			})
		},
	}
}

func (a *app) resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every excerpt and tag in the notebook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset %q without --yes", a.cfg.Notebook)
			}
			return a.withStore(cmd.Context(), func(st *storage.Store) error {
				if err := st.ResetAll(cmd.Context()); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", st.Path())
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func (a *app) tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with their excerpt counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *storage.Store) error {
				tags, err := st.Tags().ListWithCounts(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCOLOR\tEXCERPTS")
				for _, t := range tags {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.ID, t.Name, t.Color, t.Count)
				}
				return w.Flush()
			})
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search TERM...",
		Short: "Find excerpts containing every term",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *storage.Store) error {
				found, err := st.Excerpts().Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range found {
					fmt.Fprintf(out, "%s  %s《%s》%s\n  %s\n\n", e.ID, e.Author, e.Source, e.Title, e.Content)
				}
				_, err = fmt.Fprintf(out, "%d excerpts\n", len(found))
				return err
			})
		},
	}
}

func (a *app) notebooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notebooks",
		Short: "List notebook files in the notebook directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := storage.ListNotebooks(a.cfg.NotebookDir)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		// version needs no config
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Excerpts MCP Server\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
