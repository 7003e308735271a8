// Package main provides the e5sim command line: one-shot scoring and the similarity API.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/e5sim/internal/config"
)

var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "e5sim",
	Short: "Multilingual E5 sentence similarity",
	Long: `e5sim scores how semantically similar texts are using a multilingual E5
encoder exported to ONNX. Prefix queries with "query: " and documents with
"passage: " for best results.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "e5sim.yaml", "path to the YAML config file")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(modelsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the config, then sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

func setupLogging(s config.LogSettings) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if s.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(s.Level)
	if err != nil || s.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
