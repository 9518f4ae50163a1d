package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gamecafe/panelsync/internal/config"
)

var (
	flagProfile string
	flagFmt     string
)

// configFile is ~/.panelsync/config.yaml.
type configFile struct {
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

// configProfile holds the settings one venue needs. Every field maps to the
// environment variable config.Load reads.
type configProfile struct {
	SocketURL  string `yaml:"socket_url"`
	SocketPath string `yaml:"socket_path"`
	APIURL     string `yaml:"api_url"`
	APIToken   string `yaml:"api_token"`
	LocationID string `yaml:"location_id"`
	Timezone   string `yaml:"timezone"`
	LogLevel   string `yaml:"log_level"`
}

func (p configProfile) env() map[string]string {
	return map[string]string{
		"PANEL_SOCKET_URL":  p.SocketURL,
		"PANEL_SOCKET_PATH": p.SocketPath,
		"PANEL_API_URL":     p.APIURL,
		"PANEL_API_TOKEN":   p.APIToken,
		"PANEL_LOCATION_ID": p.LocationID,
		"PANEL_TIMEZONE":    p.Timezone,
		"LOG_LEVEL":         p.LogLevel,
	}
}

func versionString() string {
	return fmt.Sprintf("panelsync version %s", config.Version)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "panelsync",
		Short:   "Realtime cache sync for the venue admin panel",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagFmt != "json" && flagFmt != "table" {
				return fmt.Errorf("--format must be json or table, got %q", flagFmt)
			}
			_, err := resolveConfig()
			return err
		},
		SilenceUsage: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "Profile from ~/.panelsync/config.yaml (default: active_profile)")
	root.PersistentFlags().StringVar(&flagFmt, "format", "table", "Output format: json|table")

	root.AddCommand(newRunCmd())
	root.AddCommand(newEventsCmd())
	root.AddCommand(newDoctorCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".panelsync", "config.yaml"), nil
}

func loadConfigFile() (string, *configFile, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", nil, err
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return cfgPath, nil, err
	}

	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfgPath, nil, fmt.Errorf("parse %s: %w", cfgPath, err)
	}

	return cfgPath, &cfg, nil
}

// resolveConfig fills environment variables that are still unset from the
// selected profile, so the environment wins over the file. It returns the
// profile name applied, or "" when there is no config file.
func resolveConfig() (string, error) {
	cfgPath, cfg, err := loadConfigFile()
	if err != nil {
		if cfgPath == "" || os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	name := flagProfile
	if name == "" {
		name = cfg.ActiveProfile
	}
	if name == "" {
		name = "default"
	}

	p, ok := cfg.Profiles[name]
	if !ok {
		if flagProfile != "" {
			return "", fmt.Errorf("profile %q not found", flagProfile)
		}
		return "", nil
	}

	for k, v := range p.env() {
		if v == "" {
			continue
		}
		if _, set := os.LookupEnv(k); !set {
			if err := os.Setenv(k, v); err != nil {
				return "", fmt.Errorf("apply %s: %w", k, err)
			}
		}
	}

	return name, nil
}
