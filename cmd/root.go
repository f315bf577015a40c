package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tagwise/tagwise/cmd/annotators"
	"github.com/tagwise/tagwise/cmd/datasetimport"
	"github.com/tagwise/tagwise/cmd/serve"
	"github.com/tagwise/tagwise/internal/conf"
	"github.com/tagwise/tagwise/internal/logging"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tagwise",
		Short: "Tagwise annotation engine CLI",
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		serve.Command(settings),
		datasetimport.Command(settings),
		annotators.Command(settings),
	)

	var closeLogFile func() error

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Flag values take precedence over config file values.
		if err := viper.Unmarshal(settings); err != nil {
			return err
		}
		if err := conf.ValidateSettings(settings); err != nil {
			return err
		}

		level := logLevel(settings)
		logging.SetLevel(level)

		if settings.Main.Log.Enabled {
			closeFn, err := logging.InitFileOutput(settings.Main.Log.Path, settings.Main.Name, level, logging.FileLoggerConfig{
				MaxSizeMB:  settings.Main.Log.MaxSize,
				MaxBackups: settings.Main.Log.MaxBackups,
				MaxAgeDays: settings.Main.Log.MaxAge,
			})
			if err != nil {
				return err
			}
			closeLogFile = closeFn
		}
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if closeLogFile != nil {
			return closeLogFile()
		}
		return nil
	}

	return rootCmd
}

// logLevel maps the debug setting onto the slog level.
func logLevel(settings *conf.Settings) slog.Level {
	if settings.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// setupFlags defines global flags and binds them to viper keys.
func setupFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().Bool("debug", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().String("db", viper.GetString("output.sqlite.path"), "Path to the SQLite database")
	rootCmd.PersistentFlags().String("port", viper.GetString("webserver.port"), "Port for the HTTP API")

	cobra.CheckErr(viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")))
	cobra.CheckErr(viper.BindPFlag("output.sqlite.path", rootCmd.PersistentFlags().Lookup("db")))
	cobra.CheckErr(viper.BindPFlag("webserver.port", rootCmd.PersistentFlags().Lookup("port")))
}
