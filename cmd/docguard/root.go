package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/docguard/internal/domain/compliance"
	"github.com/bryanwahyu/docguard/internal/domain/overlay"
	"github.com/bryanwahyu/docguard/internal/logging"
)

type options struct {
	debug bool
	log   *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "docguard",
		Short:         "docguard - compliance analysis of policy documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.log = logging.NewCLI(opts.debug)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				opts.log.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "verbose logging")

	root.AddCommand(newAnalyzeCmd(opts), newRenderCmd(opts), newSummaryCmd(opts))
	return root
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// readDocument loads a text document and counts its lines.
func readDocument(path string) (string, int, error) {
	if path == "" {
		return "", 0, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	return string(b), len(overlay.ContentLines(string(b))), nil
}

// readPayload normalizes a saved backend response or exported report.
func readPayload(path string, log *zap.SugaredLogger) (compliance.Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return compliance.Result{}, err
	}
	res := compliance.NewNormalizer().Normalize(b)
	if res.Notice != "" {
		log.Warnw("payload normalized with notice", "file", filepath.Base(path), "notice", res.Notice)
	}
	log.Debugw("payload normalized", "format", res.Format, "annotations", len(res.Annotations))
	return res, nil
}
