// Package setup registers the curation MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerName is the key of the curation server in a client's mcpServers map.
const ServerName = "phetools-curation"

const binaryName = "mcp-server"

// ClientConfig represents an MCP client configuration file.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for the setup process.
type Options struct {
	ClientConfigPath string // defaults to DefaultClientConfigPath
	BinaryPath       string // path to the MCP server binary
	ConfigFile       string // server config.yaml passed with --config
	OBOPath          string // hp.obo, exported as PHETOOLS_ONTOLOGY_OBO_PATH
}

// DefaultClientConfigPath returns the Claude Desktop config path for the
// current platform.
func DefaultClientConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	var configDir string
	switch runtime.GOOS {
	case "darwin":
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig loads a client configuration. A missing file is an empty
// configuration.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClientConfig{MCPServers: make(map[string]MCPServerConfig)}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ClientConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}
	return &config, nil
}

// SaveClientConfig writes the configuration, creating its directory.
func SaveClientConfig(path string, config *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Configure adds or updates the curation server entry and returns the path
// it wrote. Other servers in the file are preserved.
func Configure(opts Options) (string, error) {
	path, err := clientConfigPath(opts)
	if err != nil {
		return "", err
	}
	config, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		if binaryPath, err = findBinary(); err != nil {
			return "", fmt.Errorf("could not find server binary: %w", err)
		}
	}

	entry := MCPServerConfig{Command: binaryPath}
	if opts.ConfigFile != "" {
		abs, err := filepath.Abs(opts.ConfigFile)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", opts.ConfigFile, err)
		}
		entry.Args = []string{"--config", abs}
	}
	if opts.OBOPath != "" {
		abs, err := filepath.Abs(opts.OBOPath)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", opts.OBOPath, err)
		}
		entry.Env = map[string]string{"PHETOOLS_ONTOLOGY_OBO_PATH": abs}
	}
	config.MCPServers[ServerName] = entry

	if err := SaveClientConfig(path, config); err != nil {
		return "", err
	}
	return path, nil
}

// Status represents the current setup status.
type Status struct {
	ClientConfigPath string   `json:"clientConfigPath" yaml:"client_config_path"`
	Configured       bool     `json:"configured" yaml:"configured"`
	ServerPath       string   `json:"serverPath,omitempty" yaml:"server_path,omitempty"`
	OBOPath          string   `json:"oboPath,omitempty" yaml:"obo_path,omitempty"`
	Issues           []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// GetStatus inspects the client configuration for the curation server.
func GetStatus(opts Options) (*Status, error) {
	path, err := clientConfigPath(opts)
	if err != nil {
		return nil, err
	}
	config, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	status := &Status{ClientConfigPath: path}
	entry, ok := config.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "curation server is not registered")
		return status, nil
	}
	status.Configured = true
	status.ServerPath = entry.Command
	status.OBOPath = entry.Env["PHETOOLS_ONTOLOGY_OBO_PATH"]

	if info, err := os.Stat(entry.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
	} else if info.Mode()&0111 == 0 {
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
	}
	if status.OBOPath != "" {
		if _, err := os.Stat(status.OBOPath); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("HPO ontology not found: %s", status.OBOPath))
		}
	}
	return status, nil
}

func clientConfigPath(opts Options) (string, error) {
	if opts.ClientConfigPath != "" {
		return opts.ClientConfigPath, nil
	}
	return DefaultClientConfigPath()
}

// findBinary looks for the MCP server on PATH and next to the running
// executable.
func findBinary() (string, error) {
	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), binaryName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("binary '%s' not found", binaryName)
}
