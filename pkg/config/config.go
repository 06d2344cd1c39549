package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up next to the analyzed manifest.
const FileName = ".depcheck.yaml"

const (
	defaultRegistry    = "https://registry.npmjs.org"
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 4
)

// Config represents the configuration for the dependency checker
type Config struct {
	// Registry is the npm-compatible registry to compare against
	Registry string `yaml:"registry"`

	// Timeout bounds each registry and manifest request
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency bounds parallel registry lookups
	Concurrency int `yaml:"concurrency"`

	// Output configuration
	Output struct {
		Format string `yaml:"format"` // text, json, sarif
		File   string `yaml:"file"`   // Output file path (console if empty)
	} `yaml:"output"`

	// Ignore specific packages
	IgnorePackages []string `yaml:"ignorePackages"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	config := &Config{
		Registry:    defaultRegistry,
		Timeout:     defaultTimeout,
		Concurrency: defaultConcurrency,
	}

	// Set default output format
	config.Output.Format = "text"

	return config
}

// LoadConfig loads the configuration from the specified file path
// If no path is provided, it looks for .depcheck.yaml in the current directory
func LoadConfig(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = FileName
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file %s does not exist", configPath)
		}
		return DefaultConfig(), nil
	}
	return readConfig(configPath)
}

// FindAndLoadConfig searches for a config file in the project directory and its parents
func FindAndLoadConfig(projectPath string) (*Config, error) {
	currentDir, err := filepath.Abs(projectPath)
	if err != nil {
		currentDir = projectPath
	}
	for {
		configPath := filepath.Join(currentDir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			return readConfig(configPath)
		}

		// Move up to the parent directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached the root directory, no config file found
			break
		}
		currentDir = parentDir
	}

	return DefaultConfig(), nil
}

func readConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

// Validate checks values that would otherwise fail later in the run.
func (c *Config) Validate() error {
	if c.Registry == "" {
		return fmt.Errorf("registry must not be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	switch c.Output.Format {
	case "", "text", "json", "sarif":
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
	return nil
}

// IsPackageIgnored checks if a package should be ignored based on the configuration
func (c *Config) IsPackageIgnored(packageName string) bool {
	for _, ignoredPackage := range c.IgnorePackages {
		if ignoredPackage == packageName {
			return true
		}
	}
	return false
}
