package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func mediaCmd(opts *globalOptions) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "media <archive.zip> [name...]",
		Short: "List media files of an archive or extract them by name",
		Long: "Without names, list the media index keys of the archive.\n" +
			"With names, extract each file into --out-dir; a name may be partial.",
		Args: cobra.MinimumNArgs(1),
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

			names := args[1:]
			if len(names) == 0 {
				// Одинаковые имена из разных каталогов выводятся все; первая запись выигрывает при поиске.
				for _, key := range loaded.Index.Keys() {
					for _, e := range loaded.Index.Candidates(key) {
						fmt.Fprintf(cmd.OutOrStdout(), "%-60s %10d  %s\n", key, e.Size, e.Name)
					}
				}
				return nil
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", outDir, err)
			}

			missing := 0
			for _, name := range names {
				res, ok := loaded.Loader.Resolve(cmd.Context(), name)
				if !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "not found: %s\n", name)
					missing++
					continue
				}
				body, live := res.Blob.Bytes()
				if !live {
					missing++
					continue
				}
				path := filepath.Join(outDir, res.Filename)
				if err := os.WriteFile(path, body, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s, %d bytes)\n", name, path, res.ContentType, res.Size)
				loaded.Loader.Release(name)
			}

			if missing > 0 {
				return fmt.Errorf("%d of %d media files not found", missing, len(names))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "d", ".", "Directory for extracted files")

	return cmd
}
