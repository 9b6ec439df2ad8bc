package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/router"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the gateway configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for one upstream provider credential.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("Gateway Configuration Setup")
	color.Yellow("Follow the prompts to configure one upstream provider credential.")

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("\nUpstream format (openai, claude, gemini, openai-compat): ")
	format, _ := reader.ReadString('\n')
	format = strings.TrimSpace(format)

	fmt.Print("API Key: ")
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)

	fmt.Print("Base URL (leave blank for the provider's default): ")
	baseURL, _ := reader.ReadString('\n')
	baseURL = strings.TrimSpace(baseURL)

	fmt.Print("Client API key clients must present (optional): ")
	clientKey, _ := reader.ReadString('\n')
	clientKey = strings.TrimSpace(clientKey)

	parsed, err := router.ParseFormat(format)
	if err != nil {
		return err
	}

	entry := router.ProviderKeyEntry{APIKey: apiKey, BaseURL: baseURL}

	cfg := &struct {
		Host                string                      `yaml:"host"`
		Port                int                         `yaml:"port"`
		APIKeys             []string                    `yaml:"api-keys,omitempty"`
		ClaudeAPIKey        []router.ProviderKeyEntry   `yaml:"claude-api-key,omitempty"`
		OpenAIAPIKey        []router.ProviderKeyEntry   `yaml:"openai-api-key,omitempty"`
		GeminiAPIKey        []router.ProviderKeyEntry   `yaml:"gemini-api-key,omitempty"`
		OpenAICompatibility []router.ProviderKeyEntry   `yaml:"openai-compatibility,omitempty"`
	}{
		Host: config.DefaultHost,
		Port: config.DefaultPort,
	}
	if clientKey != "" {
		cfg.APIKeys = []string{clientKey}
	}
	switch parsed {
	case router.FormatClaude:
		cfg.ClaudeAPIKey = []router.ProviderKeyEntry{entry}
	case router.FormatOpenAI:
		cfg.OpenAIAPIKey = []router.ProviderKeyEntry{entry}
	case router.FormatGemini:
		cfg.GeminiAPIKey = []router.ProviderKeyEntry{entry}
	case router.FormatOpenAICompat:
		cfg.OpenAICompatibility = []router.ProviderKeyEntry{entry}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfgMgr.GetPath()), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgMgr.GetPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the gateway with: aigateway start")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'aigateway config init' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-15s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-15s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-15s: %d\n", "Client keys", len(cfg.APIKeys))
	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.GetPath())

	printEntries("Claude", cfg.ClaudeAPIKey)
	printEntries("OpenAI", cfg.OpenAIAPIKey)
	printEntries("Gemini", cfg.GeminiAPIKey)
	printEntries("OpenAI-compatible", cfg.OpenAICompatibility)

	return nil
}

func printEntries(label string, entries []router.ProviderKeyEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Printf("\n%s credentials:\n", label)
	for _, entry := range entries {
		name := entry.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  - Name: %s\n", name)
		fmt.Printf("    Base URL: %s\n", entry.BaseURL)
		fmt.Printf("    API Key: %s\n", maskString(entry.APIKey))
		if len(entry.Models) > 0 {
			fmt.Printf("    Models: %d configured\n", len(entry.Models))
		}
	}
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		color.Red("Configuration validation failed:")
		fmt.Printf("  - %s\n", err)
		return fmt.Errorf("configuration validation failed")
	}

	total := len(cfg.ClaudeAPIKey) + len(cfg.OpenAIAPIKey) + len(cfg.GeminiAPIKey) + len(cfg.OpenAICompatibility)
	if total == 0 {
		color.Yellow("Configuration is valid but no provider credentials are configured")
		return nil
	}

	color.Green("Configuration is valid!")
	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
