package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/qiflow/internal/config"
	"github.com/nvandessel/qiflow/internal/constants"
	"github.com/nvandessel/qiflow/internal/store"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage qiflow configuration",
		Long: `View and modify the engine configuration.

Configuration is stored in ~/.qiflow/config.yaml (or the file given with
--config). Keys the file omits keep their defaults.

Examples:
  qiflow config list                           # Show the effective configuration
  qiflow config get flow.iterations            # Get a specific setting
  qiflow config set gat.enabled true           # Set a setting
  qiflow config validate tuned.yaml            # Check a file without using it`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigValidateCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := cfg.Lookup(key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"key":   key,
					"value": value,
				})
			}
			if _, isGroup := value.(map[string]any); isGroup {
				data, err := yaml.Marshal(value)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", key)
				for _, line := range splitLines(string(data)) {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", line)
				}
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the config file. The value is parsed as
YAML, so numbers, booleans and lists such as [0.6,0.3,0.1] keep their type.
The file is only written if the resulting configuration is valid.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, raw := args[0], args[1]

			if _, ok := config.Default().Lookup(key); !ok {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			var value any
			if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
				return fmt.Errorf("invalid value %q: %w", raw, err)
			}

			path, err := configPath(cmd)
			if err != nil {
				return err
			}

			overrides := map[string]any{}
			data, err := os.ReadFile(path)
			switch {
			case err == nil:
				if err := yaml.Unmarshal(data, &overrides); err != nil {
					return fmt.Errorf("parsing %s: %w", path, err)
				}
				if overrides == nil {
					overrides = map[string]any{}
				}
			case !errors.Is(err, os.ErrNotExist):
				return fmt.Errorf("reading %s: %w", path, err)
			}

			if err := config.SetPath(overrides, key, value); err != nil {
				return err
			}

			out, err := yaml.Marshal(overrides)
			if err != nil {
				return err
			}
			cfg, err := config.LoadFromBytes(out)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := os.WriteFile(path, out, 0600); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"status": "updated",
					"key":    key,
					"value":  value,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := config.LoadFromFile(path)
			if err == nil {
				err = cfg.Validate()
			}

			if jsonOut {
				result := map[string]any{"path": path, "valid": err == nil}
				if err != nil {
					result["error"] = err.Error()
				}
				if encErr := printJSON(cmd.OutOrStdout(), result); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
			return nil
		},
	}
}

// configPath returns --config or ~/.qiflow/config.yaml.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	dir, err := store.GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// splitLines splits s on newlines, dropping a trailing empty line.
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
