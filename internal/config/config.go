package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultProfileName is the config profile every other profile inherits from
	DefaultProfileName = "default"

	// DefaultBitrateKbps is used for the aac codec when no bitrate is configured
	DefaultBitrateKbps = 64

	inherited       = "inherited"
	profileSpecific = "profile-specific"
)

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Device       DeviceConfig              `mapstructure:"device" yaml:"device"`
	Globals      *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

type GlobalsConfig struct {
	Output OutputConfig `mapstructure:"output" yaml:"output"`
}

// DeviceConfig selects and tunes the capture device. It is shared by all profiles.
type DeviceConfig struct {
	Backend        string `mapstructure:"backend" yaml:"backend"` // "auto", "pulse", "alsa", "lavfi"
	Source         string `mapstructure:"source" yaml:"source"`   // backend specific input name
	FFmpeg         string `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	Pause          string `mapstructure:"pause" yaml:"pause"` // "auto", "enabled", "disabled"
	Metering       bool   `mapstructure:"metering" yaml:"metering"`
	StartupGraceMs int    `mapstructure:"startup_grace_ms" yaml:"startup_grace_ms"`
	StopTimeoutMs  int    `mapstructure:"stop_timeout_ms" yaml:"stop_timeout_ms"`
}

type CodecConfig struct {
	Profile     string `mapstructure:"profile" yaml:"profile"` // "aac", "amr"
	BitrateKbps int    `mapstructure:"bitrate_kbps" yaml:"bitrate_kbps,omitempty"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type ConfigProfile struct {
	Codec  CodecConfig  `mapstructure:"codec" yaml:"codec"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
}

type Config struct {
	Name   string       `mapstructure:"-" yaml:"name"`
	Device DeviceConfig `mapstructure:"device" yaml:"device"`
	Codec  CodecConfig  `mapstructure:"codec" yaml:"codec"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	// Internal field to track inheritance information for info command
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

type InheritanceInfo struct {
	Codec struct {
		Profile     string // "inherited" or "profile-specific"
		BitrateKbps string
	}
	Output struct {
		Directory string
	}
}

var defaultDevice = DeviceConfig{
	Backend:        "auto",
	Source:         "",
	FFmpeg:         "ffmpeg",
	Pause:          "auto",
	Metering:       true,
	StartupGraceMs: 300,
	StopTimeoutMs:  5000,
}

// Default returns the built-in configuration used when no config file exists
func Default() *Config {
	return &Config{
		Name:   DefaultProfileName,
		Device: defaultDevice,
		Codec: CodecConfig{
			Profile:     "aac",
			BitrateKbps: DefaultBitrateKbps,
		},
		Output: OutputConfig{
			Directory: filepath.Join(os.Getenv("HOME"), "Audio", "Memos"),
		},
	}
}

// LoadWithProfile reads configFile and resolves the named profile, falling
// back to active_config and then to "default".
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	// Validate configuration format first
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Determine which config to use
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = DefaultProfileName
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	// Merge with default config if it exists and we're not already using default
	var base *ConfigProfile
	if configName != DefaultProfileName {
		base = rootConfig.Configs[DefaultProfileName]
	}
	selectedConfig := mergeConfigs(base, selectedProfile)
	selectedConfig.Name = configName
	selectedConfig.Device = rootConfig.Device

	// Global recordings directory takes priority over profile-specific directory
	if rootConfig.Globals != nil && rootConfig.Globals.Output.Directory != "" {
		selectedConfig.Output.Directory = rootConfig.Globals.Output.Directory
		selectedConfig.Inheritance.Output.Directory = inherited
	}

	selectedConfig.Output.Directory = expandPath(selectedConfig.Output.Directory)

	if err := validateConfig(selectedConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return err
	}
	if _, exists := rootConfig.Configs[newActiveConfig]; !exists {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// mergeConfigs resolves a profile against the default profile:
// - Codec: profile value, or the default profile's codec when unset
// - Bitrate: only inherited when the codec itself is the same as the default's
// - Output: profile value or fallback to default
func mergeConfigs(base, profile *ConfigProfile) *Config {
	result := &Config{Inheritance: &InheritanceInfo{}}

	if base != nil {
		result.Codec = base.Codec
		result.Output = base.Output

		result.Inheritance.Codec.Profile = inherited
		result.Inheritance.Codec.BitrateKbps = inherited
		result.Inheritance.Output.Directory = inherited
	} else {
		result.Inheritance.Codec.Profile = profileSpecific
		result.Inheritance.Codec.BitrateKbps = profileSpecific
		result.Inheritance.Output.Directory = profileSpecific
	}

	if profile == nil {
		return result
	}

	if profile.Codec.Profile != "" {
		sameCodec := strings.EqualFold(profile.Codec.Profile, result.Codec.Profile)
		result.Codec.Profile = profile.Codec.Profile
		result.Inheritance.Codec.Profile = profileSpecific

		// A different codec does not carry over the default's bitrate
		if !sameCodec {
			result.Codec.BitrateKbps = 0
			result.Inheritance.Codec.BitrateKbps = profileSpecific
		}
	}
	if profile.Codec.BitrateKbps != 0 {
		result.Codec.BitrateKbps = profile.Codec.BitrateKbps
		result.Inheritance.Codec.BitrateKbps = profileSpecific
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
		result.Inheritance.Output.Directory = profileSpecific
	}

	result.Codec.Profile = strings.ToLower(result.Codec.Profile)
	if result.Codec.Profile == "aac" && result.Codec.BitrateKbps == 0 {
		result.Codec.BitrateKbps = DefaultBitrateKbps
	}

	return result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// validateConfig checks a resolved configuration
func validateConfig(config *Config) error {
	if err := validateCodec(config.Codec); err != nil {
		return err
	}

	if strings.TrimSpace(config.Output.Directory) == "" {
		return fmt.Errorf("output directory is required")
	}

	return validateDevice(config.Device)
}

// validateCodec enforces the per-codec bitrate rules
func validateCodec(codec CodecConfig) error {
	switch strings.ToLower(codec.Profile) {
	case "aac":
		if codec.BitrateKbps < 8 || codec.BitrateKbps > 320 {
			return fmt.Errorf("aac bitrate_kbps must be between 8 and 320, got %d", codec.BitrateKbps)
		}
	case "amr":
		if codec.BitrateKbps != 0 {
			return fmt.Errorf("amr codec has a fixed bitrate, remove bitrate_kbps (%d)", codec.BitrateKbps)
		}
	case "":
		return fmt.Errorf("codec profile is required (aac, amr)")
	default:
		return fmt.Errorf("codec profile must be 'aac' or 'amr', got: %s", codec.Profile)
	}
	return nil
}

func validateDevice(device DeviceConfig) error {
	switch strings.ToLower(device.Backend) {
	case "", "auto", "pulse", "pipewire", "alsa", "lavfi":
	default:
		return fmt.Errorf("device backend must be one of auto, pulse, pipewire, alsa, lavfi, got: %s", device.Backend)
	}

	switch device.Pause {
	case "", "auto", "enabled", "disabled":
	default:
		return fmt.Errorf("device pause must be one of auto, enabled, disabled, got: %s", device.Pause)
	}

	if device.StartupGraceMs < 0 || device.StopTimeoutMs < 0 {
		return fmt.Errorf("device timeouts must not be negative")
	}

	return nil
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	// Set environment variable prefix, e.g. MEMOCAPTURE_DEVICE_BACKEND
	v.SetEnvPrefix("MEMOCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("device.backend", defaultDevice.Backend)
	v.SetDefault("device.ffmpeg", defaultDevice.FFmpeg)
	v.SetDefault("device.pause", defaultDevice.Pause)
	v.SetDefault("device.metering", defaultDevice.Metering)
	v.SetDefault("device.startup_grace_ms", defaultDevice.StartupGraceMs)
	v.SetDefault("device.stop_timeout_ms", defaultDevice.StopTimeoutMs)
	v.SetDefault("device.source", defaultDevice.Source)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section is required")
	}

	for configName, configProfile := range rootConfig.Configs {
		if configProfile == nil {
			return nil, fmt.Errorf("invalid config '%s': empty profile", configName)
		}
		if configProfile.Codec.Profile != "" {
			codec := configProfile.Codec
			if strings.EqualFold(codec.Profile, "aac") && codec.BitrateKbps == 0 {
				codec.BitrateKbps = DefaultBitrateKbps
			}
			if err := validateCodec(codec); err != nil {
				return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
			}
		}
	}

	if err := validateDevice(rootConfig.Device); err != nil {
		return nil, fmt.Errorf("invalid device section: %w", err)
	}

	return &rootConfig, nil
}

// ProfileNames returns the names of all profiles in the config file
func ProfileNames(configFile string) ([]string, error) {
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
