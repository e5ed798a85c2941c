// dogan - terminal video and audio downloader
// Named after the falcon (doğan) in Turkish
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilimcininkoroglu/dogan/internal/engine"
	"github.com/kilimcininkoroglu/dogan/internal/pipeline"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitParseError    = 2
	ExitToolError     = 3
	ExitChecksumError = 6
	ExitInterrupted   = 8
)

// exitError carries the process exit code for an error. quiet errors were
// already shown to the user.
type exitError struct {
	code  int
	err   error
	quiet bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitErr(code int, err error) error {
	return &exitError{code: code, err: err}
}

func reported(err error) error {
	return &exitError{code: exitCode(err), err: err, quiet: true}
}

// exitCode maps an error returned by a command to the process exit code
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, engine.ErrChecksumMismatch):
		return ExitChecksumError
	case errors.Is(err, pipeline.ErrUnknownQuality):
		return ExitParseError
	}

	var procErr *engine.ProcessError
	var runErr *engine.RuntimeError
	if errors.As(err, &procErr) || errors.As(err, &runErr) {
		return ExitToolError
	}
	return ExitGeneralError
}

// globalFlags are shared by every command
type globalFlags struct {
	configPath  string
	profile     string
	verbose     bool
	noColor     bool
	audio       bool
	outputDir   string
	metricsAddr string
	onComplete  string
	onError     string
	webhook     string
	publish     string
	digest      string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "dogan [URL]",
		Short: "Download video or audio with a live quality picker",
		Long: `dogan lists the qualities a site offers for a URL, lets you pick one
and follows the transfer. Without a subcommand it opens the interactive
controller; the URL, if given, is checked right away.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) == 1 {
				url = args[0]
			}
			return runInteractive(cmd.Context(), flags, url)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default: search .dogan.yaml, user config dir, /etc/dogan)")
	pf.StringVar(&flags.profile, "profile", "", "named profile from the config file")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colors")
	pf.BoolVarP(&flags.audio, "audio", "a", false, "audio mode instead of video")
	pf.StringVarP(&flags.outputDir, "output-dir", "P", "", "directory for finished files")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	pf.StringVar(&flags.onComplete, "on-complete", "", "shell command to run after a transfer")
	pf.StringVar(&flags.onError, "on-error", "", "shell command to run when a transfer fails")
	pf.StringVar(&flags.webhook, "webhook", "", "URL receiving JSON lifecycle events")
	pf.StringVar(&flags.publish, "publish", "", "copy finished files to ftp://, ftps:// or sftp:// target")
	pf.StringVar(&flags.digest, "digest", "", "hash finished files (md5, sha1, sha256, sha512, blake3)")

	root.AddCommand(
		newFormatsCmd(flags),
		newGetCmd(flags),
		newBatchCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	var ee *exitError
	switch {
	case err == nil:
	case errors.As(err, &ee) && ee.quiet:
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Interrupted")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
