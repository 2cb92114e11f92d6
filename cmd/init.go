package cmd

import (
	"fmt"

	"github.com/nikogura/resumelm/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Long: `Create a default configuration file at ~/.resumelm/config.json (or the path given by --config).

Use a .yaml or .yml path to write YAML instead of JSON. Edit the file afterwards to set
your user id, model and API keys.`,
	RunE: runInit,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) (err error) {
	path := getConfigFile()
	if path == "" {
		path, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}

	err = config.InitConfig(path)
	if err != nil {
		err = errors.Wrap(err, "failed to initialize config")
		return err
	}

	fmt.Printf("Created config file: %s\n", path)
	fmt.Println("Set client.api_keys (or ANTHROPIC_API_KEY / OPENAI_API_KEY / OPENROUTER_API_KEY) before running AI commands.")
	return err
}
