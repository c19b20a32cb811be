package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chat-archive-parser/internal/adapters/exporter"
	"chat-archive-parser/internal/ports"
)

func parseCmd(opts *globalOptions) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "parse <archive.zip>",
		Short: "Print messages of an archive with resolved attachments",
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

			out, closeOut, err := createOutput(output)
			if err != nil {
				return err
			}

			var exp ports.Exporter
			switch format {
			case "text":
				exp = exporter.NewConsoleExporter(out)
			case "json":
				exp = exporter.NewJSONExporter(out)
			default:
				_ = closeOut()
				return fmt.Errorf("unknown format %q: want text or json", format)
			}

			if err := exp.Export(loaded.Records); err != nil {
				_ = closeOut()
				return err
			}
			return closeOut()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout")

	return cmd
}
