package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docxref/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage docxref configuration",
	Long:  "View and manage docxref configuration stored in .docxref/config.{yaml,json,toml}",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after file and environment overrides.

Examples:
  docxref config show                # TOML, as config init would write it
  docxref config show --format json  # JSON with the source and overrides`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .docxref/config.toml",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Long:  "Display all supported DOCXREF_ environment variable overrides",
	Args:  cobra.NoArgs,
	Run:   runConfigEnv,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Replace an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

// configKeys lists every configuration key in file order.
var configKeys = []string{
	"freshnessWindow",
	"workerCount",
	"retryLimit",
	"perAttemptTimeout",
	"cachePath",
	"backoffBase",
	"backoffMax",
	"userAgent",
	"skip",
	"logging.format",
	"logging.level",
	"logging.file",
	"logging.maxSize",
	"logging.maxBackups",
	"logging.compressBackups",
}

// envVar returns the environment variable viper consults for key.
func envVar(key string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// EnvOverride is one environment variable that changed a config value.
type EnvOverride struct {
	EnvVar string `json:"envVar"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// ConfigShowResponse is the response format for config show
type ConfigShowResponse struct {
	ConfigPath   string        `json:"configPath,omitempty"`
	UsedDefaults bool          `json:"usedDefaults"`
	EnvOverrides []EnvOverride `json:"envOverrides,omitempty"`
	Config       config.View   `json:"config"`
}

func envOverrides() []EnvOverride {
	var out []EnvOverride
	for _, key := range configKeys {
		name := envVar(key)
		if value, ok := os.LookupEnv(name); ok {
			out = append(out, EnvOverride{EnvVar: name, Key: key, Value: value})
		}
	}
	return out
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	resp := &ConfigShowResponse{
		ConfigPath:   s.cfg.Source,
		UsedDefaults: s.cfg.Source == "",
		EnvOverrides: envOverrides(),
		Config:       s.cfg.View(),
	}
	if s.format == FormatJSON {
		return printResponse(cmd, resp, s.format)
	}

	data, err := s.cfg.EncodeTOML()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if resp.UsedDefaults {
		fmt.Fprintln(w, "# Source: defaults (no config file found)")
	} else {
		fmt.Fprintf(w, "# Source: %s\n", resp.ConfigPath)
	}
	for _, ov := range resp.EnvOverrides {
		fmt.Fprintf(w, "# %s=%s overrides %s\n", ov.EnvVar, ov.Value, ov.Key)
	}
	_, err = w.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	repoRoot := rootDir
	if repoRoot == "" {
		var err error
		if repoRoot, err = os.Getwd(); err != nil {
			return err
		}
	}

	cfg := config.DefaultConfig()
	path, err := cfg.Save(repoRoot, configInitForce)
	if stderrors.Is(err, config.ErrExists) {
		return fmt.Errorf("%w (use --force to replace it)", err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigEnv(cmd *cobra.Command, _ []string) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Supported environment variables:")
	for _, key := range configKeys {
		fmt.Fprintf(w, "  %-30s %s\n", envVar(key), key)
	}
}
