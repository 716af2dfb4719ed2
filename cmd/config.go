package cmd

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/memocapture/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage MemoCapture configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use [profile]",
	Short: "Set the active configuration profile",
	Long: `Set active_config in the configuration file. Without an argument the
available profiles are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = defaultConfigPath()
		}

		if len(args) == 0 {
			names, err := config.ProfileNames(path)
			if err != nil {
				return err
			}
			for _, name := range names {
				marker := " "
				if cfg != nil && name == cfg.Name {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, name)
			}
			return nil
		}

		if err := config.UpdateActiveConfig(path, strings.TrimSpace(args[0])); err != nil {
			return err
		}
		fmt.Printf("Active configuration set to %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configUseCmd)
}
