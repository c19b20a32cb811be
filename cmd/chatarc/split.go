package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"chat-archive-parser/internal/core/services"
	"chat-archive-parser/internal/domain"
	"chat-archive-parser/internal/pkg/chrono"
)

func splitCmd(opts *globalOptions) *cobra.Command {
	var from, to, output string
	var noChat, noMedia bool
	var extensions, chatPatterns []string

	cmd := &cobra.Command{
		Use:   "split <archive.zip>",
		Short: "Write a new archive with messages and media from a time range",
		Long: "Write a new archive with the transcript blocks and media files dated within [--from, --to].\n" +
			"Bounds are RFC 3339 or YYYY-MM-DD; a date-only --to covers the whole day.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}

			start, err := chrono.ParseBound(from, a.loc, false)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := chrono.ParseBound(to, a.loc, true)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			splitOpts := domain.NewSplitOptions(start, end)
			splitOpts.IncludeChat = !noChat
			splitOpts.IncludeMedia = !noMedia
			if len(extensions) > 0 {
				splitOpts.MediaExtensions = extensions
			}
			if len(chatPatterns) > 0 {
				splitOpts.ChatFilenameCandidates = nil
				for _, p := range chatPatterns {
					re, err := regexp.Compile(p)
					if err != nil {
						return fmt.Errorf("--chat-pattern %q: %w", p, err)
					}
					splitOpts.ChatFilenameCandidates = append(splitOpts.ChatFilenameCandidates, re)
				}
			}

			data, err := a.readArchive(args[0])
			if err != nil {
				return err
			}

			dst, closeDst, err := createBinaryOutput(output)
			if err != nil {
				return err
			}

			splitter := services.NewSplitService(services.WithSplitLocation(a.loc), services.WithSplitLogger(a.log))
			out, report, err := splitter.Split(cmd.Context(), data, splitOpts)
			if err != nil {
				_ = closeDst()
				return err
			}
			if _, err := dst.Write(out); err != nil {
				_ = closeDst()
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			if err := closeDst(); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			// При выводе архива в stdout сводка уходит в stderr.
			summary := cmd.OutOrStdout()
			if dst == os.Stdout {
				summary = cmd.ErrOrStderr()
			}
			fmt.Fprintf(summary, "Wrote %s: %d/%d message blocks, %d/%d media files kept\n",
				output,
				report.KeptBlocks, report.KeptBlocks+report.DroppedBlocks,
				report.KeptMedia, report.KeptMedia+report.DroppedMedia,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Range start (inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (inclusive)")
	cmd.Flags().StringVarP(&output, "output", "o", "split.zip", "Output archive path, - for stdout")
	cmd.Flags().BoolVar(&noChat, "no-chat", false, "Do not include the transcript")
	cmd.Flags().BoolVar(&noMedia, "no-media", false, "Do not include media files")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "Media extensions to include (default: built-in set)")
	cmd.Flags().StringArrayVar(&chatPatterns, "chat-pattern", nil, "Regexp for the transcript file name, may repeat")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
