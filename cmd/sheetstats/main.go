// Command sheetstats inspects project workbooks and writes their Statistics
// sheet from the command line.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"projectdash/internal/config"
	"projectdash/internal/dataprocessing"
	"projectdash/internal/files"
	"projectdash/internal/infrastructure"
	"projectdash/internal/validation"
)

// errNotWritten is returned when the writer reports a soft failure.
var errNotWritten = errors.New("statistics sheet was not written")

type cli struct {
	root    string
	pretty  bool
	columns []string
	dryRun  bool
	limit   int

	cfg       *config.Config
	logger    *slog.Logger
	loader    *dataprocessing.SheetLoader
	validator *validation.FileValidator
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:          "sheetstats",
		Short:        "Inspect construction project workbooks",
		Long:         "sheetstats lists project folders and workbooks, prints cleaned sheets as JSON\nand writes the per-column Statistics sheet into a workbook.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.root, "root", "", "Projects root (default: DASH_PROJECTS_ROOT or ./Construction)")
	rootCmd.PersistentFlags().BoolVar(&c.pretty, "pretty", false, "Pretty-print JSON output")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "projects",
			Short: "List project folders below the root",
			Args:  cobra.NoArgs,
			RunE:  c.runProjects,
		},
		&cobra.Command{
			Use:   "files <project>",
			Short: "List the workbooks of a project",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runFiles,
		},
		&cobra.Command{
			Use:   "sheets <workbook>",
			Short: "List the sheet names of a workbook",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runSheets,
		},
		&cobra.Command{
			Use:   "check <workbook>",
			Short: "Report whether a workbook has a Statistics sheet",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runCheck,
		},
	)

	loadCmd := &cobra.Command{
		Use:   "load <workbook> <sheet>",
		Short: "Print a cleaned sheet as JSON",
		Args:  cobra.ExactArgs(2),
		RunE:  c.runLoad,
	}
	loadCmd.Flags().IntVar(&c.limit, "limit", 0, "Maximum rows to print (0 prints all)")

	statsCmd := &cobra.Command{
		Use:   "stats <workbook> <sheet>",
		Short: "Write the Statistics sheet for a sheet",
		Args:  cobra.ExactArgs(2),
		RunE:  c.runStats,
	}
	statsCmd.Flags().StringSliceVar(&c.columns, "columns", nil, "Columns to summarise (default: every numeric column)")
	statsCmd.Flags().BoolVar(&c.dryRun, "dry-run", false, "Print the statistics without modifying the workbook")

	rootCmd.AddCommand(loadCmd, statsCmd)
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.root != "" {
		cfg.Projects.Root = c.root
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	c.loader = dataprocessing.NewSheetLoader(dataprocessing.LoaderOptions{Logger: logger})
	c.validator = validation.NewFileValidator(logger)
	return nil
}

func (c *cli) discovery() *files.Discovery {
	return files.NewDiscovery(c.cfg.Projects.Root, c.logger)
}

type projectOutput struct {
	Name      string `json:"name"`
	Workbooks int    `json:"workbooks"`
}

func (c *cli) runProjects(cmd *cobra.Command, args []string) error {
	if err := c.validator.ValidateDirectory(c.cfg.Projects.Root); err != nil {
		return err
	}
	projects, err := c.discovery().ListProjects()
	if err != nil {
		return err
	}
	out := make([]projectOutput, len(projects))
	for i, p := range projects {
		count, err := c.validator.CountWorkbooks(p.Path)
		if err != nil {
			return err
		}
		out[i] = projectOutput{Name: p.Name, Workbooks: count}
	}
	return c.print(cmd.OutOrStdout(), out)
}

func (c *cli) runFiles(cmd *cobra.Command, args []string) error {
	d := c.discovery()
	dir, err := d.ProjectDir(args[0])
	if err != nil {
		return fmt.Errorf("project %q: %w", args[0], err)
	}
	workbooks, err := d.FindWorkbooks(dir)
	if err != nil {
		return err
	}
	return c.print(cmd.OutOrStdout(), workbooks)
}

func (c *cli) runSheets(cmd *cobra.Command, args []string) error {
	if err := c.validator.ValidateWorkbook(args[0]); err != nil {
		return err
	}
	names, err := c.loader.SheetNames(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return c.print(cmd.OutOrStdout(), names)
}

func (c *cli) runCheck(cmd *cobra.Command, args []string) error {
	if err := c.validator.ValidateWorkbook(args[0]); err != nil {
		return err
	}
	writer := dataprocessing.NewStatisticsWriter(c.loader, c.logger)
	return c.print(cmd.OutOrStdout(), map[string]interface{}{
		"workbook":       args[0],
		"has_statistics": writer.HasStatisticsSheet(cmd.Context(), args[0]),
	})
}

type columnOutput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// sheetOutput lists columns in table order.
type sheetOutput struct {
	Sheet   string                            `json:"sheet"`
	Columns []columnOutput                    `json:"columns"`
	Rows    []map[string]dataprocessing.Value `json:"rows"`
	Total   int                               `json:"total_rows"`
}

type statsOutput struct {
	Workbook  string                       `json:"workbook"`
	Sheet     string                       `json:"sheet"`
	Written   bool                         `json:"written"`
	Unmatched []string                     `json:"unmatched_columns,omitempty"`
	Stats     []dataprocessing.ColumnStats `json:"stats"`
}

func (c *cli) runLoad(cmd *cobra.Command, args []string) error {
	if err := c.validator.ValidateWorkbook(args[0]); err != nil {
		return err
	}
	table, err := c.loader.LoadSheet(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	columns := make([]columnOutput, 0, table.ColumnCount())
	for _, col := range table.Columns {
		columns = append(columns, columnOutput{Name: col.Name, Type: col.Type.String()})
	}

	limit := c.limit
	if limit <= 0 {
		limit = table.RowCount()
	}
	return c.print(cmd.OutOrStdout(), sheetOutput{
		Sheet:   args[1],
		Columns: columns,
		Rows:    table.Slice(0, limit).Records(),
		Total:   table.RowCount(),
	})
}

func (c *cli) runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path, sheet := args[0], args[1]
	if err := c.validator.ValidateWorkbook(path); err != nil {
		return err
	}

	table, err := c.loader.LoadSheet(ctx, path, sheet)
	if err != nil {
		return err
	}

	selected := trimColumns(c.columns)
	unmatched := dataprocessing.UnmatchedColumns(table, selected)
	if len(unmatched) > 0 {
		c.logger.Warn("Selected columns not found in sheet",
			slog.String("sheet", sheet),
			slog.Any("columns", unmatched))
	}

	stats := dataprocessing.ComputeColumnStats(table, selected)
	if stats == nil {
		stats = []dataprocessing.ColumnStats{}
	}

	if !c.dryRun {
		writer := dataprocessing.NewStatisticsWriter(c.loader, c.logger)
		if !writer.WriteStatistics(ctx, path, table, selected) {
			return errNotWritten
		}
	}

	return c.print(cmd.OutOrStdout(), statsOutput{
		Workbook:  path,
		Sheet:     sheet,
		Written:   !c.dryRun,
		Unmatched: unmatched,
		Stats:     stats,
	})
}

func trimColumns(columns []string) []string {
	var out []string
	for _, col := range columns {
		if col = strings.TrimSpace(col); col != "" {
			out = append(out, col)
		}
	}
	return out
}

func (c *cli) print(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if c.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
