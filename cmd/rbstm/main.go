// Command rbstm exercises the persistent tree and the STM runtime.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rbstm",
		Short:         "Persistent red-black tree and STM workloads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int64("seed", 1, "random seed")

	rootCmd.AddCommand(
		newTreeCommand(),
		newBankCommand(),
		newQueueCommand(),
	)
	return rootCmd
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	name, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func seedFlag(cmd *cobra.Command) uint64 {
	seed, _ := cmd.Flags().GetInt64("seed")
	return uint64(seed)
}
