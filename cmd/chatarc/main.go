package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "chatarc",
		Short:         "Chat archive parser - read, extract and cut exported chat archives",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.yml (default ./config.yml if present)")
	rootCmd.PersistentFlags().StringVar(&opts.timezone, "tz", "", "Timezone for timestamps without zone, e.g. Europe/Berlin")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(parseCmd(opts))
	rootCmd.AddCommand(splitCmd(opts))
	rootCmd.AddCommand(exportCmd(opts))
	rootCmd.AddCommand(mediaCmd(opts))
	rootCmd.AddCommand(participantsCmd(opts))

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
