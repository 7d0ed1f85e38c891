package main

import (
	"fmt"
	"os"

	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "mdb",
		Short: "Media database tool - create, migrate and inspect media index databases",
		Long: `mdb manages the schema lifecycle of SQLite media index databases.
It creates new databases, upgrades old layouts in place, rebuilds databases
that cannot be upgraded, and verifies that the structure on disk matches the
declared layout of a schema version.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/mdb.yaml)")
	rootCmd.PersistentFlags().String("db", "media.db", "media database file")
	rootCmd.PersistentFlags().Int("target", schema.Latest, "schema version to migrate to")
	rootCmd.PersistentFlags().Bool("internal", false, "use the internal volume layout (no playlists or genres)")
	rootCmd.PersistentFlags().Bool("early-upgrade", false, "migrate when the database is opened")
	rootCmd.PersistentFlags().Bool("network-optimized", false, "apply network filesystem pragmas (auto-detected when unset)")
	rootCmd.PersistentFlags().Bool("no-rebuild-on-corruption", false, "fail instead of recreating a corrupt database")
	rootCmd.PersistentFlags().String("events-dir", "", "directory for JSONL event logs (disabled when empty)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	for _, name := range []string{
		"db", "target", "internal", "early-upgrade", "network-optimized",
		"no-rebuild-on-corruption", "events-dir", "verbose", "quiet",
	} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("mdb")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix("MDB")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
