package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"drivers/internal/config"
	"drivers/internal/exporter"
	"drivers/internal/importer"
	"drivers/internal/model"
	"drivers/internal/parser"
	"drivers/internal/server"
	"drivers/internal/store"
	"drivers/internal/util"
)

var (
	configDir string
	dataDir   string

	port        int
	devMode     bool
	openBrowser bool

	kind          string
	sheet         string
	year          int
	table         string
	headerRow     int
	targets       string
	dryRun        bool
	createMissing bool
	jsonOutput    bool

	outputPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "drivers",
		Short:         "Fleet and driver records with Excel imports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding config.toml and .env (default: next to the executable)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "listen port (only used when config.toml does not set one)")
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "development mode")
	serveCmd.Flags().BoolVar(&openBrowser, "open", false, "open the API status page in a browser")

	importCmd := &cobra.Command{
		Use:   "import <file.xlsx|file.xls>",
		Short: "Import a workbook into the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	importCmd.Flags().StringVar(&kind, "kind", "auto", "import kind: auto, time-attendance, stop-events, vehicle-movements, generic")
	importCmd.Flags().StringVar(&sheet, "sheet", "", "only this sheet")
	importCmd.Flags().IntVar(&year, "year", 0, "reference year for dates without one")
	importCmd.Flags().StringVar(&table, "table", "", "target table of generic imports (default generic_rows)")
	importCmd.Flags().IntVar(&headerRow, "header-row", 0, "1-based header row of generic imports (default: located)")
	importCmd.Flags().StringVar(&targets, "targets", "", "comma separated output fields of generic imports")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without storing")
	importCmd.Flags().BoolVar(&createMissing, "create-missing", false, "create drivers and vehicles that are not stored yet")
	importCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")

	exportCmd := &cobra.Command{
		Use:   "export <entity>",
		Short: "Export drivers, vehicles, rounds, alerts or assignments to xlsx",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default <entity>.xlsx)")

	rootCmd.AddCommand(serveCmd, importCmd, exportCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the config and applies the persistent flags
func loadConfig() (*config.AppConfig, config.LoadConfigInfo, error) {
	var (
		cfg  *config.AppConfig
		info config.LoadConfigInfo
		err  error
	)
	if configDir != "" {
		cfg, info, err = config.LoadConfigFrom(configDir)
	} else {
		cfg, info, err = config.LoadConfigWithInfo()
	}
	if err != nil {
		return nil, info, err
	}
	if dataDir != "" {
		cfg.Data.DataDir = dataDir
	}
	return cfg, info, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, info, err := loadConfig()
	if err != nil {
		log.Printf("failed to load config, using defaults: %v", err)
		cfg = config.DefaultConfig()
		info = config.LoadConfigInfo{Dir: "."}
	}
	if port > 0 && !info.PortSpecified {
		cfg.Server.Port = port
	}
	if devMode {
		cfg.Server.DevMode = true
	}

	logger := log.New(os.Stderr, "drivers ", log.LstdFlags)
	srv, err := server.NewServer(cfg, info.Dir, logger)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		errCh <- srv.Run(addr)
	}()

	if openBrowser {
		if url, err := util.OpenStatusPage(cfg.Server.Port); err != nil {
			fmt.Printf("could not open a browser, visit %s\n", url)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		_ = srv.Shutdown(context.Background())
		return err
	case <-quit:
	}

	logger.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, info, err := loadConfig()
	if err != nil {
		return err
	}
	importKind, err := model.ParseImportKind(kind)
	if err != nil {
		return err
	}

	if _, err := config.EnsureDataDir(cfg, info.Dir); err != nil {
		return err
	}
	st, err := store.New(config.DBPath(cfg, info.Dir))
	if err != nil {
		return err
	}
	defer st.Close()

	logger := log.New(os.Stderr, "", 0)
	coordinator := importer.NewCoordinator(st, parser.New(logger, cfg.Import.TemplateProfile), logger)

	opts := importer.ImportOptions{
		FilePath:      args[0],
		Kind:          importKind,
		Sheet:         sheet,
		Year:          year,
		Table:         table,
		DryRun:        dryRun,
		CreateMissing: createMissing || cfg.Import.CreateMissing,
		Generic: parser.GenericOptions{
			HeaderRow: headerRow,
			Targets:   splitList(targets),
		},
	}
	if opts.Year == 0 {
		opts.Year = cfg.Import.ReferenceYear
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	report, err := coordinator.Run(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(report)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, info, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.New(config.DBPath(cfg, info.Dir))
	if err != nil {
		return err
	}
	defer st.Close()

	entity := args[0]
	f, err := exporter.NewExporter(st).Export(cmd.Context(), entity, nil)
	if err != nil {
		return err
	}
	defer f.Close()

	path := outputPath
	if path == "" {
		path = entity + ".xlsx"
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Printf("exported %s to %s\n", entity, path)
	return nil
}

func printReport(r *importer.Report) {
	fmt.Printf("%s: %s import into %s (%s)\n", r.Filename, r.Kind, r.Table, r.Status)
	for _, s := range r.Sheets {
		line := fmt.Sprintf("  %-24s %-18s %4d imported %4d rejected", s.SheetName, s.Kind, s.ImportedRows, s.ErrorRows)
		if s.Degraded {
			line += "  degraded"
		}
		if s.Error != "" {
			line += "  " + s.Error
		}
		fmt.Println(line)
	}
	for _, e := range r.Errors {
		fmt.Printf("  %s row %d: %s (%s)\n", e.Sheet, e.Row, e.Reason, e.Code)
	}
	for entity, n := range r.Created {
		fmt.Printf("  created %d %s\n", n, entity)
	}
	if r.DryRun {
		fmt.Println("dry run: nothing stored")
	}
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
