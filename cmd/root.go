package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/nikogura/resumelm/pkg/server"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var verbose bool

//nolint:gochecknoglobals // Cobra boilerplate
var configFile string

//nolint:gochecknoglobals // Cobra boilerplate
var envFile string

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "resumelm",
	Short: "Build, import and tailor resumes with AI",
	Long: `resumelm keeps a master profile of your career history and derives resumes from it.

Import existing resumes (text or PDF) into your profile or into a resume, create base
resumes for target roles, and tailor them to specific job postings. Cover letters are
written for tailored resumes.

Models: Anthropic (claude-*), OpenAI (gpt-*), OpenRouter (provider/model) and local
Ollama models (ollama:<name>).`,
	SilenceUsage:      true,
	PersistentPreRunE: setupEnvironment,
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.resumelm/config.json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
}

// setupEnvironment loads the dotenv file and installs the process logger.
func setupEnvironment(cmd *cobra.Command, args []string) (err error) {
	if envFile != "" {
		// A missing .env is normal; only a malformed one is reported.
		if _, statErr := os.Stat(envFile); statErr == nil {
			err = godotenv.Load(envFile)
			if err != nil {
				return err
			}
		}
	}

	level := slog.LevelWarn
	var handler slog.Handler
	if getVerbose() {
		level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	pipeline.SetLogger(logger)
	server.SetLogger(logger)

	return err
}

// getVerbose returns the verbose flag value.
func getVerbose() (result bool) {
	result = verbose
	return result
}

// getConfigFile returns the config file path.
func getConfigFile() (result string) {
	result = configFile
	return result
}
