package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"promocli/internal/app"
	"promocli/internal/config"
	"promocli/internal/infrastructure"
	"promocli/internal/services"
	"promocli/internal/validation"
	"promocli/pkg/contracts"
)

// options are the command line flags.
type options struct {
	in         string
	out        string
	promos     string
	sheet      string
	rules      string
	summaryCSV string
	configPath string
	list       bool
	version    bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if opts.version {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, cfg, logger, os.Stdout); err != nil {
		infrastructure.WithError(logger, err).Error("promo report failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("promo-report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.in, "in", "", "order export to analyse (.xlsx or .csv)")
	fs.StringVar(&opts.out, "out", "", "output workbook (defaults to <in>_analysed.xlsx; a .csv path writes the classified rows only)")
	fs.StringVar(&opts.promos, "promos", "", "comma separated promotions to apply (defaults to the configured selection)")
	fs.StringVar(&opts.sheet, "sheet", "", "worksheet to read from xlsx input")
	fs.StringVar(&opts.rules, "rules", "", "YAML file of additional expression rules")
	fs.StringVar(&opts.summaryCSV, "summary-csv", "", "also write the summary as csv to this path")
	fs.StringVar(&opts.configPath, "config", "", "config file")
	fs.BoolVar(&opts.list, "list", false, "list available promotions and exit")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if !opts.list && !opts.version && opts.in == "" {
		fmt.Fprintln(stderr, "-in is required")
		fs.Usage()
		return opts, fmt.Errorf("missing -in")
	}
	return opts, nil
}

// run applies the flags over cfg, analyses the input and writes the outputs.
func run(ctx context.Context, opts options, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	if opts.sheet != "" {
		cfg.Promo.Sheet = opts.sheet
	}
	if opts.rules != "" {
		cfg.Promo.RulesFile = opts.rules
	}

	svc, err := app.NewPromoService(cfg, nil, logger)
	if err != nil {
		return err
	}

	if opts.list {
		printPromotions(stdout, svc.Promotions())
		return nil
	}

	out := opts.out
	if out == "" {
		out = strings.TrimSuffix(opts.in, filepath.Ext(opts.in)) + "_analysed.xlsx"
	}

	files := validation.NewFileValidator(logger)
	if err := files.ValidateExport(opts.in); err != nil {
		return err
	}
	if err := files.ValidateOutput(out, opts.in); err != nil {
		return err
	}
	if opts.summaryCSV != "" {
		if err := files.ValidateOutput(opts.summaryCSV, opts.in); err != nil {
			return err
		}
	}

	result, err := svc.AnalyzeFile(ctx, opts.in, splitPromos(opts.promos))
	if err != nil {
		return err
	}

	if err := svc.WriteWorkbookFile(ctx, out, result); err != nil {
		return err
	}
	if opts.summaryCSV != "" {
		if err := svc.WriteSummaryFile(opts.summaryCSV, result); err != nil {
			return err
		}
	}

	logger.Info("promo report written",
		slog.String("input", opts.in),
		slog.String("output", out),
		slog.Int("rows", len(result.Table.Records)))

	printDistribution(stdout, result)
	fmt.Fprintf(stdout, "\nSaved to %s\n", out)
	return nil
}

func printPromotions(w io.Writer, promos []services.PromotionInfo) {
	for _, p := range promos {
		marker := " "
		if p.Default {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %2d  %s\n", marker, p.Rank, p.Name)
	}
	fmt.Fprintln(w, "\n* applied when -promos is not given")
}

func printDistribution(w io.Writer, result *services.AnalysisResult) {
	fmt.Fprintln(w, "Promo Distribution")
	for _, c := range result.Distribution {
		fmt.Fprintf(w, "%s: $%s\n", c.Category, c.Total.StringFixed(2))
	}
	fmt.Fprintf(w, "Total: $%s\n", result.Summary.Total.Total.StringFixed(2))
}

func splitPromos(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
