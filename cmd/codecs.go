package cmd

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/memocapture/internal/audio"
	"github.com/audiolibrelab/memocapture/internal/config"

	"github.com/spf13/cobra"
)

// codecPlan describes what a codec profile sends to the device
type codecPlan struct {
	Name      string   `yaml:"name"`
	Extension string   `yaml:"extension"`
	Commands  []string `yaml:"commands"`
}

var codecsCmd = &cobra.Command{
	Use:   "codecs",
	Short: "List codec profiles and their device configuration",
	Long: `List the available codec profiles together with the ordered
configuration commands each one applies to the recording device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bitrate, _ := cmd.Flags().GetInt("bitrate")

		plans, err := codecPlans(bitrate)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(plans)
		if err != nil {
			return fmt.Errorf("error marshaling codecs: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func codecPlans(aacKbps int) ([]codecPlan, error) {
	var plans []codecPlan
	for _, name := range audio.AvailableProfiles() {
		kbps := 0
		if name == audio.ProfileNameAAC {
			kbps = aacKbps
		}

		p, err := audio.ProfileByName(name, kbps)
		if err != nil {
			return nil, err
		}

		plan := codecPlan{Name: p.Name(), Extension: p.Extension()}
		for _, c := range audio.Commands(p) {
			plan.Commands = append(plan.Commands, c.String())
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func init() {
	codecsCmd.Flags().IntP("bitrate", "b", config.DefaultBitrateKbps, "aac bit rate in kbps used for the listing")
}
