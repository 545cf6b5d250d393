package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/docguard/internal/domain/compliance"
)

func newSummaryCmd(opts *options) *cobra.Command {
	var (
		payload  string
		document string
		lines    int
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize a saved report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := readPayload(payload, opts.log)
			if err != nil {
				return err
			}
			if document != "" {
				_, n, err := readDocument(document)
				if err != nil {
					return err
				}
				lines = n
			}
			s := compliance.Summarize(res.Annotations, lines)
			b, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "backend response or exported report (JSON)")
	cmd.Flags().StringVar(&document, "document", "", "document the report belongs to, for the line count")
	cmd.Flags().IntVar(&lines, "lines", 0, "number of lines analysed when no document is given")
	cmd.MarkFlagRequired("payload")
	return cmd
}
