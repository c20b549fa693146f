package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mpapenbr/crewchief/pkg/cmd/serve"
	"github.com/mpapenbr/crewchief/pkg/cmd/simulate"
	"github.com/mpapenbr/crewchief/pkg/config"
	"github.com/mpapenbr/crewchief/pkg/session"
	"github.com/mpapenbr/crewchief/version"
)

const envPrefix = "CCH"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "crewchief",
	Short:   "Simulated race telemetry with AI crew chief coaching",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.crewchief.yml)")

	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules, for example '*:* -debug:processing.*'")
	rootCmd.PersistentFlags().StringVar(&config.ResultsFile,
		"results-file",
		"results.csv",
		"race results export (semicolon separated)")
	rootCmd.PersistentFlags().StringVar(&config.WeatherFile,
		"weather-file",
		"",
		"weather schedule (yaml), constant weather if empty")
	rootCmd.PersistentFlags().StringVar(&config.ZonesFile,
		"zones-file",
		"",
		"overtaking zones (yaml), built-in zones if empty")
	rootCmd.PersistentFlags().IntVar(&config.TotalLaps,
		"laps",
		session.DefaultTotalLaps,
		"number of laps to simulate")
	rootCmd.PersistentFlags().IntVar(&config.RaceLaps,
		"race-laps",
		session.DefaultTotalLaps,
		"race distance used for driver fatigue and crew chief context")
	rootCmd.PersistentFlags().IntVar(&config.HistoryWindow,
		"pace-history-window",
		50,
		"lap times kept per car for pace regression (0 = unbounded)")
	rootCmd.PersistentFlags().Int64Var(&config.Seed,
		"seed",
		0,
		"seed for simulated values (0 = random)")
	rootCmd.PersistentFlags().IntVar(&config.MaxCars,
		"max-cars",
		session.DefaultMaxCars,
		"number of result rows to simulate (0 = all)")

	// add commands here
	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(simulate.NewSimulateCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".crewchief" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".crewchief")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --log-level to CCH_LOG_LEVEL
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
