package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "0.1.0"
)

// rootCmd searches a directory tree when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "fsvisitor [options] <path>",
	Short: "Search a directory tree and report what the walk sees",
	Long: `fsvisitor walks a directory tree depth-first, files before subdirectories,
and prints every entry that passes the filter. Listeners can exclude entries or
stop the walk early.

Examples:
  fsvisitor --ext=.go /path/to/search
  fsvisitor --pattern="*_test.go" --events /path/to/search
  fsvisitor --exclude=".git" --stop-after=100 /path/to/search
  fsvisitor --regex=".*/internal/.*" --format=json /path/to/search`,
	Version:       version,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(args[0])
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.fsvisitor.yaml)")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.Bool("silent", false, "Disable all output except errors")
	flags.String("format", "text", "Output format (text|json)")

	// Filter options
	flags.StringSlice("ext", []string{}, "File extensions to match (e.g. .go,.txt)")
	flags.StringP("pattern", "n", "", "Match base names against a glob")
	flags.StringP("path-pattern", "p", "", "Match full paths against a glob")
	flags.StringP("regex", "r", "", "Match full paths against a regular expression")
	flags.String("contains", "", "Match paths containing a substring")

	// Steering options
	flags.StringSlice("exclude", []string{}, "Exclude entries whose name matches one of these globs")
	flags.Int("stop-after", 0, "Stop the walk when this many files have been found (0 for unlimited)")
	flags.String("stop-at", "", "Stop the walk at the first entry whose name matches this glob")
	flags.Bool("events", false, "Log every notification fired by the walk")

	for _, name := range []string{
		"verbose", "silent", "format",
		"ext", "pattern", "path-pattern", "regex", "contains",
		"exclude", "stop-after", "stop-at", "events",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fsvisitor")
	}

	viper.SetEnvPrefix("FSVISITOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
