package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir        string = "deet"
	configDirHidden  string = ".deet"
	configFile       string = "config.yml"
	defaultStackSize int    = 1024
	defaultDisassLen int    = 8
	defaultCacheSize int    = 4096
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// EntryFunctions are the functions at which a backtrace stops.
	EntryFunctions []string `yaml:"entry-functions"`

	// MaxStackDepth bounds the number of frames a backtrace will walk even
	// if the saved frame pointer chain is corrupt.
	MaxStackDepth int `yaml:"max-stack-depth,omitempty"`

	// DisassembleCount is the number of instructions printed by the
	// disassemble command when no count is given.
	DisassembleCount int `yaml:"disassemble-count,omitempty"`

	// SymbolCacheSize is the number of PC lookups remembered by the symbol
	// table. Zero disables the cache.
	SymbolCacheSize *int `yaml:"symbol-cache-size,omitempty"`
}

// Defaults fills every unset option with its default value.
func (c *Config) Defaults() {
	if len(c.EntryFunctions) == 0 {
		c.EntryFunctions = []string{"main", "main.main"}
	}
	if c.MaxStackDepth <= 0 {
		c.MaxStackDepth = defaultStackSize
	}
	if c.DisassembleCount <= 0 {
		c.DisassembleCount = defaultDisassLen
	}
	if c.SymbolCacheSize == nil {
		n := defaultCacheSize
		c.SymbolCacheSize = &n
	}
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return defaultConfig(), fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return defaultConfig(), fmt.Errorf("unable to get config file path: %v", err)
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			return defaultConfig(), fmt.Errorf("error creating default config file: %v", err)
		}
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return defaultConfig(), fmt.Errorf("unable to read config data: %v", err)
	}
	return Parse(data)
}

// Parse decodes a configuration file and applies defaults.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return defaultConfig(), fmt.Errorf("unable to decode config file: %v", err)
	}
	c.Defaults()
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func defaultConfig() *Config {
	c := &Config{}
	c.Defaults()
	return c
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	f.Seek(0, 0)
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the deet debugger.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Functions at which the backtrace command stops walking the stack.
# entry-functions: ["main", "main.main"]

# Maximum number of frames walked by backtrace.
# max-stack-depth: 1024

# Number of instructions printed by disassemble when no count is given.
# disassemble-count: 8

# Number of address lookups cached by the symbol table, 0 disables the cache.
# symbol-cache-size: 4096
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
// $XDG_CONFIG_HOME/deet is used when XDG_CONFIG_HOME is set, otherwise
// ~/.deet.
func GetConfigFilePath(file string) (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return path.Join(xdg, configDir, file), nil
	}
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDirHidden, file), nil
}
