package main

import (
	"github.com/spf13/cobra"

	"chat-archive-parser/internal/adapters/exporter"
)

func exportCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <archive.zip>",
		Short: "Export messages to an Excel workbook",
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

			out, closeOut, err := createBinaryOutput(output)
			if err != nil {
				return err
			}
			if err := exporter.NewExcelExporter(out, a.log).Export(loaded.Records); err != nil {
				_ = closeOut()
				return err
			}
			return closeOut()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "messages.xlsx", "Output workbook path, - for stdout")

	return cmd
}
