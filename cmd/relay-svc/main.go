package main

import (
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"supportrelay/internal/config"
	"supportrelay/internal/observability"
)

var logLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relay-svc",
	Short: "Customer support chat relay",
	Long: `relay-svc stores support conversations, relays user messages to an AI
provider, and gives moderators a queue to review, prioritise and take over
conversations.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			log.Debug("no .env file found, using system environment variables")
		}
	},
}

// loadConfig reads the environment and configures logrus from it
func loadConfig() (*config.Config, func(), error) {
	cfg := config.LoadConfig()
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	closer, err := observability.SetupLogging(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, func() { _ = closer.Close() }, nil
}

func main() {
	// Add some millisecond precision to log timestamps, useful for debugging performance.
	formatter := new(log.TextFormatter)
	formatter.TimestampFormat = "2006-01-02T15:04:05.999Z07:00"
	formatter.FullTimestamp = true
	log.SetFormatter(formatter)

	rootCmd.AddCommand(
		NewServeCommand(),
		NewHashKeyCommand(),
		NewIssueTokenCommand(),
	)

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (trace,debug,info,warn,error), overrides LOG_LEVEL")

	err := rootCmd.Execute()
	if err != nil {
		log.WithError(err).Fatal("could not execute root command")
	}
}
