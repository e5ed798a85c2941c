package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilimcininkoroglu/dogan/internal/config"
	"github.com/kilimcininkoroglu/dogan/internal/download"
	"github.com/kilimcininkoroglu/dogan/internal/engine"
	"github.com/kilimcininkoroglu/dogan/internal/media"
	"github.com/kilimcininkoroglu/dogan/internal/tui"
	"github.com/kilimcininkoroglu/dogan/internal/ui"
	"github.com/kilimcininkoroglu/dogan/internal/version"
)

func runInteractive(ctx context.Context, flags *globalFlags, url string) error {
	a, err := newApp(flags, true)
	if err != nil {
		return err
	}
	defer a.Close()

	settings := tui.Settings{
		Destination:  a.destination,
		Mode:         a.mode,
		MaxHeight:    a.cfg.Download.MaxHeight,
		PollInterval: a.cfg.UI.PollInterval,
		ClearAfter:   a.cfg.UI.ClearAfter,
		LogLines:     a.cfg.UI.LogLines,
		ToolWarning:  a.toolWarning,
		URL:          url,
	}
	return tui.Run(ctx, a.service, settings, tui.Options{
		NoColor:   !a.cfg.UI.Colors,
		AltScreen: true,
	})
}

func newFormatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "formats URL",
		Short: "List the qualities available for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.service.QualityList(cmd.Context(), args[0], a.mode)
			if err != nil {
				return exitErr(ExitToolError, err)
			}
			return printQualities(cmd.OutOrStdout(), list)
		},
	}
}

func printQualities(w io.Writer, list media.QualityList) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUALITY\tFORMAT")
	for _, e := range list.Entries() {
		id := e.Selector
		if e.IsAuto() {
			id = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\n", e.Label, id)
	}
	return tw.Flush()
}

func newGetCmd(flags *globalFlags) *cobra.Command {
	var (
		quality  string
		progress string
		checksum string
	)

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Download one URL without the interactive controller",
		Example: `  dogan get https://example.com/watch?v=abc
  dogan get -a --quality 128kbps https://example.com/watch?v=abc
  dogan get --quality 137 --checksum sha256:... https://example.com/v`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			style, err := parseStyle(progress)
			if err != nil {
				return err
			}
			expect, err := engine.ParseChecksum(checksum)
			if err != nil {
				return exitErr(ExitParseError, fmt.Errorf("invalid checksum: %w", err))
			}

			a, err := newApp(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			view := ui.NewTransferView(args[0],
				ui.WithOutput(cmd.OutOrStdout()),
				ui.WithStyle(style),
				ui.WithNoColor(!a.cfg.UI.Colors))
			if a.toolWarning != "" {
				view.Note("Warning: %s", a.toolWarning)
			}

			_, err = transferOne(cmd.Context(), a, view, args[0], a.mode, quality, expect)
			return err
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "quality label (720p, 128kbps) or format id; empty picks automatically")
	cmd.Flags().StringVar(&progress, "progress", string(ui.StyleBar), "progress style: bar, plain or json")
	cmd.Flags().StringVar(&checksum, "checksum", "", "expected digest of the finished file, alg:hex")
	return cmd
}

func parseStyle(s string) (ui.Style, error) {
	switch style := ui.Style(s); style {
	case ui.StyleBar, ui.StylePlain, ui.StyleJSON:
		return style, nil
	default:
		return "", exitErr(ExitParseError, fmt.Errorf("unknown progress style %q", s))
	}
}

// transferOne resolves quality and runs one job, reporting to view
func transferOne(ctx context.Context, a *app, view *ui.TransferView, url string, mode media.Mode, quality string, expect *engine.Checksum) (string, error) {
	selector, err := a.service.ResolveQuality(ctx, url, mode, quality)
	if err != nil {
		view.Fail(err)
		return "", reported(err)
	}

	job, err := engine.NewJob(url, mode, selector, a.destination)
	if err != nil {
		view.Fail(err)
		return "", &exitError{code: ExitParseError, err: err, quiet: true}
	}
	job.Expect = expect

	res, err := a.service.Run(ctx, job, view.Line, view.Progress)
	if err != nil {
		view.Fail(err)
		return "", reported(err)
	}
	view.Complete(res.OutputPath, res.Duration())
	return res.OutputPath, nil
}

func newBatchCmd(flags *globalFlags) *cobra.Command {
	var (
		input    string
		progress string
	)

	cmd := &cobra.Command{
		Use:   "batch -i FILE",
		Short: "Download every URL listed in a file, one after another",
		Long: `Each line of FILE is "URL [video|audio] [quality]", separated by spaces
or "|". Lines starting with # are ignored. Lines without a mode use the
configured one; lines without a quality pick automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			style, err := parseStyle(progress)
			if err != nil {
				return err
			}

			a, err := newApp(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			queue := download.NewQueue(a.mode)
			if err := queue.LoadFromFile(input); err != nil {
				return exitErr(ExitParseError, err)
			}
			if queue.Count() == 0 {
				return exitErr(ExitParseError, errors.New("no URLs found in "+input))
			}

			return runBatch(cmd.Context(), a, queue, cmd.OutOrStdout(), style)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "file with one URL per line")
	cmd.Flags().StringVar(&progress, "progress", string(ui.StyleBar), "progress style: bar, plain or json")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runBatch(ctx context.Context, a *app, queue *download.Queue, out io.Writer, style ui.Style) error {
	start := time.Now()
	total := queue.Count()
	fmt.Fprintf(out, "dogan %s - %s URLs\n\n", version.Short(), ui.FormatCount(int64(total)))

	for {
		item, ok := queue.NextPending()
		if !ok {
			break
		}
		if ctx.Err() != nil {
			queue.SkipPending()
			break
		}

		title := fmt.Sprintf("[%d/%d] %s", item.ID+1, total, item.URL)
		view := ui.NewTransferView(title,
			ui.WithOutput(out),
			ui.WithStyle(style),
			ui.WithNoColor(!a.cfg.UI.Colors))

		queue.Start(item.ID)
		outputPath, err := transferOne(ctx, a, view, item.URL, item.Mode, item.Quality, nil)
		if err != nil {
			queue.Fail(item.ID, err)
			continue
		}
		queue.Complete(item.ID, outputPath)
	}

	stats := queue.Stats()
	fmt.Fprintf(out, "\nBatch finished in %s:\n", time.Since(start).Round(time.Second))
	fmt.Fprintf(out, "  Completed: %d\n", stats.Completed)
	fmt.Fprintf(out, "  Failed:    %d\n", stats.Failed)
	if stats.Skipped > 0 {
		fmt.Fprintf(out, "  Skipped:   %d\n", stats.Skipped)
	}

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case stats.Failed > 0:
		return exitErr(ExitGeneralError, fmt.Errorf("%d of %d transfers failed", stats.Failed, total))
	}
	return nil
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ExpandPath(flags.configPath)
			if path == "" {
				var err error
				if path, err = config.GetDefaultConfigPath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := writeDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	pathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "Show where config files are looked up, in order",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ConfigPaths() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		},
	}

	cmd.AddCommand(initCmd, pathsCmd)
	return cmd
}

func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, []byte(config.GenerateDefaultConfig()), 0644)
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")
	return cmd
}
