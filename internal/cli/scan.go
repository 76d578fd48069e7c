package cli

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/maxgio92/wsscan"
	"github.com/maxgio92/wsscan/internal/logging"
	"github.com/maxgio92/wsscan/procmem"
)

type scanOptions struct {
	configPath      string
	scanData        bool
	detectShellcode bool
	maxLoadSize     uint64
	arch            string
	workers         int
	format          string
}

// regionSource lists the regions of one working set.
type regionSource interface {
	Regions() ([]*wsscan.PageRegion, error)
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <pid>",
		Short: "Scan the working set of a process",
		Long: `Scan every memory region of a live process and print one report per
suspicious region. Regions backed by a named image or a real file mapping
are never reported.

Flags override the values read from --config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}
			format, err := parseFormat(opts.format)
			if err != nil {
				return err
			}
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}

			base := logging.New(root.loggingConfig(cmd))
			logger := base.With().Str("component", "scan").Logger()

			proc, err := procmem.Open(pid)
			if err != nil {
				return fmt.Errorf("failed to open process: %w", err)
			}
			defer proc.Close() // nolint:errcheck

			logger.Info().
				Int("pid", pid).
				Bool("dep", proc.DEPEnabled()).
				Str("arch", string(cfg.Arch)).
				Bool("scan_data", cfg.ScanData).
				Bool("detect_shellcode", cfg.DetectShellcode).
				Msg("Starting working set scan")

			scanner := wsscan.NewScanner(cfg, wsscan.WithLogger(base))
			reports, err := scanRegions(cmd.Context(), proc, scanner, opts.workers, logger)
			if err != nil {
				return err
			}

			logger.Info().
				Int("pid", pid).
				Int("reports", len(reports)).
				Msg("Working set scan completed")

			return writeReports(cmd.OutOrStdout(), format, reports)
		},
	}

	opts.addFlags(cmd.Flags())

	return cmd
}

func (o *scanOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.configPath, "config", "c", "", "YAML scanner configuration")
	flags.BoolVar(&o.scanData, "scan-data", false, "Treat readable pages as executable when DEP is off")
	flags.BoolVar(&o.detectShellcode, "detect-shellcode", true, "Run the code-pattern detector when no PE is found")
	flags.Uint64Var(&o.maxLoadSize, "max-load-size", wsscan.DefaultMaxLoadSize, "Maximum bytes loaded per region")
	flags.StringVar(&o.arch, "arch", "", "Instruction set of the target (amd64, 386, arm64; default: host)")
	flags.IntVarP(&o.workers, "workers", "w", runtime.NumCPU(), "Regions classified concurrently")
	flags.StringVarP(&o.format, "format", "o", string(formatTable), "Output format (table, json)")
}

// buildConfig layers the config file and the explicitly set flags on top of
// the defaults. The architecture defaults to the host one when supported.
func buildConfig(cmd *cobra.Command, opts *scanOptions) (wsscan.Config, error) {
	cfg := wsscan.DefaultConfig()
	if host := wsscan.Arch(runtime.GOARCH); host.Supported() {
		cfg.Arch = host
	}

	if opts.configPath != "" {
		loaded, err := wsscan.LoadConfigFile(opts.configPath)
		if err != nil {
			return wsscan.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("scan-data") {
		cfg.ScanData = opts.scanData
	}
	if flags.Changed("detect-shellcode") {
		cfg.DetectShellcode = opts.detectShellcode
	}
	if flags.Changed("max-load-size") {
		cfg.MaxLoadSize = opts.maxLoadSize
	}
	if flags.Changed("arch") {
		cfg.Arch = wsscan.Arch(opts.arch)
	}

	if err := cfg.Validate(); err != nil {
		return wsscan.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// scanRegions classifies every region of src on up to workers goroutines and
// returns the reports ordered by base address.
func scanRegions(ctx context.Context, src regionSource, scanner *wsscan.Scanner, workers int, logger zerolog.Logger) ([]*wsscan.Report, error) {
	regions, err := src.Regions()
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	logger.Debug().Int("regions", len(regions)).Msg("Working set enumerated")

	results := make([]*wsscan.Report, len(regions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, region := range regions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = scanner.ScanRemote(region)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	reports := slices.DeleteFunc(results, func(r *wsscan.Report) bool {
		return r == nil
	})
	slices.SortFunc(reports, func(a, b *wsscan.Report) int {
		return cmp.Compare(a.Base, b.Base)
	})
	return reports, nil
}
