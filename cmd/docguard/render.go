package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/docguard/internal/domain/overlay"
)

const (
	ansiHighlight = "\x1b[43;30m"
	ansiReset     = "\x1b[0m"
)

func newRenderCmd(opts *options) *cobra.Command {
	var (
		payload     string
		anchorLines bool
		color       bool
		byLine      bool
	)
	cmd := &cobra.Command{
		Use:   "render <document>",
		Short: "Overlay the findings of a saved report onto a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, _, err := readDocument(args[0])
			if err != nil {
				return err
			}
			res, err := readPayload(payload, opts.log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if byLine {
				return writeLines(out, overlay.Layout(content, res.Sections, res.Annotations))
			}

			anns := res.Annotations
			if anchorLines {
				anns = overlay.AnchorToLines(content, anns)
			}
			segs := overlay.Render(content, anns)
			opts.log.Debugf("%d segments, %d highlighted of %d findings", len(segs), len(overlay.Rendered(segs)), len(anns))
			return writeSegments(out, segs, color)
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "backend response or exported report (JSON)")
	cmd.Flags().BoolVar(&anchorLines, "anchor-lines", false, "highlight whole source lines")
	cmd.Flags().BoolVar(&color, "color", false, "use ANSI colors instead of [[markers]]")
	cmd.Flags().BoolVar(&byLine, "lines", false, "print one row per line with section chips")
	cmd.MarkFlagRequired("payload")
	return cmd
}

func writeSegments(w io.Writer, segs []overlay.Segment, color bool) error {
	var b strings.Builder
	for _, s := range segs {
		switch {
		case !s.Highlighted():
			b.WriteString(s.Text)
		case color:
			b.WriteString(ansiHighlight + s.Text + ansiReset)
		default:
			fmt.Fprintf(&b, "[[%s]]{%s}", s.Text, s.Annotation.Severity)
		}
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}

func writeLines(w io.Writer, lines []overlay.LineView) error {
	for _, l := range lines {
		if l.SectionHeader && l.Section != nil {
			if _, err := fmt.Fprintf(w, "     ── %s [%s]\n", l.Section.Title, l.Section.Status); err != nil {
				return err
			}
		}
		mark := " "
		if len(l.AnnotationIDs) > 0 {
			mark = "!"
		}
		if _, err := fmt.Fprintf(w, "%4d %s %s\n", l.Number, mark, l.Text); err != nil {
			return err
		}
	}
	return nil
}
