// Package main provides the entry point for the chime CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chime/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "chime",
		Short: "Play sound effects and music from the command line",
		Long: paragraph(
			fmt.Sprintf("\nPlay sound effects and background music through a %s.", keyword("tiny audio bridge")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
	}
)

// validateOptions loads the effective configuration: defaults, then the
// config file, then CHIME_* variables, then flags.
func validateOptions(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("config") {
		ensureDefaultConfig()
	}
	if configFile != "" && configFile != viper.ConfigFileUsed() {
		// The default path may be missing if it could not be created.
		if _, err := os.Stat(configFile); err == nil || cmd.Flags().Changed("config") {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("unable to read config file: %w", err)
			}
		}
	}

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	c, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = c
	log.Debug("Configuration loaded", "command", cmd.Name(), "volume", cfg.Volume, "backend", cfg.Audio.Backend)
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "config file")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("backend", "", "audio backend (auto, oto or mock)")
	rootCmd.PersistentFlags().Duration("settle-delay", time.Second, "how long each play call blocks after starting a sound")
	rootCmd.PersistentFlags().Float64P("volume", "v", 1.0, "volume scale between 0.0 and 1.0")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("audio.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("settle_delay", rootCmd.PersistentFlags().Lookup("settle-delay"))
	_ = viper.BindPFlag("volume", rootCmd.PersistentFlags().Lookup("volume"))

	rootCmd.AddCommand(playCmd, musicCmd, doctorCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	e, err := config.ParseEnv()
	if err != nil {
		log.Warn("Could not read environment", "error", err)
	}

	path, err := config.Setup(viper.GetViper(), e)
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}
	configFile = path
}

// ensureDefaultConfig writes the default config file when none was found.
func ensureDefaultConfig() {
	if viper.ConfigFileUsed() != "" || configFile == "" {
		return
	}
	if err := config.EnsureFile(configFile); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
