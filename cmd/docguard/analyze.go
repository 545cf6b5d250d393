package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	appanalysis "github.com/bryanwahyu/docguard/internal/application/analysis"
	"github.com/bryanwahyu/docguard/internal/domain/analyzer"
	"github.com/bryanwahyu/docguard/internal/domain/compliance"
	"github.com/bryanwahyu/docguard/internal/infra/ai/prompt"
	"github.com/bryanwahyu/docguard/internal/infra/backend/httpapi"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	var (
		backendURL string
		apiKey     string
		timeout    time.Duration
		exportDir  string
	)
	cmd := &cobra.Command{
		Use:   "analyze <document>",
		Short: "Analyze a document and print the normalized result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, lines, err := readDocument(args[0])
			if err != nil {
				return err
			}
			if content == "" {
				return appanalysis.ErrEmptyContent
			}

			var backend analyzer.Backend = prompt.Local{}
			if backendURL != "" {
				backend = httpapi.NewClient(backendURL, apiKey, timeout, opts.log.Desugar())
			}
			opts.log.Infof("analyzing %s (%d lines)", args[0], lines)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			raw, err := backend.Analyze(ctx, analyzer.Request{Filename: filepath.Base(args[0]), Content: content})
			if err != nil {
				return err
			}

			res := compliance.NewNormalizer().Normalize(raw)
			summary := compliance.Summarize(res.Annotations, lines)
			env := appanalysis.Envelope{
				ExportedAt:      time.Now().UTC(),
				Filename:        filepath.Base(args[0]),
				Summary:         summary,
				Annotations:     res.Annotations,
				SectionAnalyses: res.Sections,
			}
			body, err := json.MarshalIndent(env, "", "  ")
			if err != nil {
				return err
			}

			if exportDir != "" {
				path := filepath.Join(exportDir, appanalysis.ExportFilename(env.ExportedAt))
				if err := os.WriteFile(path, body, 0o644); err != nil {
					return err
				}
				opts.log.Infow("report exported", "path", path)
			}
			if res.Notice != "" {
				opts.log.Warnw("analysis notice", "notice", res.Notice)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return err
		},
	}
	cmd.Flags().StringVar(&backendURL, "url", "", "analysis backend base URL (default: built-in keyword analyzer)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "bearer token for the backend")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "backend timeout")
	cmd.Flags().StringVar(&exportDir, "export", "", "also write compliance-report-<date>.json into this directory")
	return cmd
}
