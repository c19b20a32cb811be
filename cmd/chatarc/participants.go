package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chat-archive-parser/internal/adapters/exporter"
	"chat-archive-parser/internal/core/services"
)

func participantsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "participants <archive.zip>",
		Short: "List chat participants with message counts and mentions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}

			data, err := a.readArchive(args[0])
			if err != nil {
				return err
			}
			loaded, err := a.loader.LoadArchive(cmd.Context(), data)
			if err != nil {
				return err
			}
			defer loaded.Close()

			summary := services.NewParticipantService().ExtractParticipants(loaded.Records)
			out := cmd.OutOrStdout()
			for _, p := range summary.Participants {
				fmt.Fprintf(out, "%-30s %6d messages %4d attachments  %s .. %s\n",
					p.Name, p.Messages, p.Attachments,
					p.FirstSeen.Format(exporter.ConsoleTimeLayout), p.LastSeen.Format(exporter.ConsoleTimeLayout))
			}
			if len(summary.Mentions) > 0 {
				fmt.Fprintf(out, "Mentions: @%s\n", strings.Join(summary.Mentions, ", @"))
			}
			return nil
		},
	}
}
