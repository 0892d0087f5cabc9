package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"drivers/internal/parser"
)

// Environment overrides, read from the process or a .env file next to config.toml
const (
	EnvDataDir       = "DRIVERS_DATA_DIR"
	EnvPort          = "DRIVERS_PORT"
	EnvReferenceYear = "DRIVERS_REFERENCE_YEAR"
)

// AppConfig application config
type AppConfig struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Import ImportConfig `toml:"import"`
}

// ServerConfig server config
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig data config
type DataConfig struct {
	DataDir string `toml:"data_dir"` // relative paths are resolved against the config directory
}

// ImportConfig defaults of import runs plus the template profile of the heuristics
type ImportConfig struct {
	ReferenceYear int  `toml:"reference_year"` // year of partial dates when a sheet carries none
	CreateMissing bool `toml:"create_missing"`
	parser.TemplateProfile
}

// LoadConfigInfo config load metadata
type LoadConfigInfo struct {
	Dir           string // directory holding config.toml
	PortSpecified bool
	FromFile      bool
}

// DefaultConfig default config
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20261,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Import: ImportConfig{
			TemplateProfile: parser.DefaultProfile(),
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir directory of the executable
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfigWithInfo loads config.toml next to the executable
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return LoadConfigFrom(exeDir)
}

// LoadConfigFrom loads dir/config.toml (defaults when absent) and applies
// environment overrides; a missing .env file is not an error
func LoadConfigFrom(dir string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{Dir: dir}
	config := DefaultConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	switch {
	case err == nil:
		info.FromFile = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("parse config.toml: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, info, err
	}
	config.Import.TemplateProfile = config.Import.TemplateProfile.WithDefaults()

	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, info, fmt.Errorf("read .env: %w", err)
	}
	env := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	if v := env(EnvDataDir); v != "" {
		config.Data.DataDir = v
	}
	if v := env(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, info, fmt.Errorf("%s: %w", EnvPort, err)
		}
		config.Server.Port = port
		info.PortSpecified = true
	}
	if v := env(EnvReferenceYear); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return nil, info, fmt.Errorf("%s: %w", EnvReferenceYear, err)
		}
		config.Import.ReferenceYear = year
	}

	return config, info, nil
}

// LoadConfig loads config.toml next to the executable
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo()
	return config, err
}

// SaveConfig writes dir/config.toml
func SaveConfig(dir string, config *AppConfig) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.toml"), data, 0644)
}

// DataDir absolute data directory; relative paths hang off baseDir
func DataDir(config *AppConfig, baseDir string) string {
	if filepath.IsAbs(config.Data.DataDir) {
		return config.Data.DataDir
	}
	return filepath.Join(baseDir, config.Data.DataDir)
}

// EnsureDataDir creates the data directory and its uploads subdirectory
func EnsureDataDir(config *AppConfig, baseDir string) (string, error) {
	dataDir := DataDir(config, baseDir)
	if err := os.MkdirAll(filepath.Join(dataDir, "uploads"), 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// GetDataPath path of a file in a data subdirectory
func GetDataPath(config *AppConfig, baseDir, subdir, filename string) string {
	return filepath.Join(DataDir(config, baseDir), subdir, filename)
}

// DBPath sqlite database file
func DBPath(config *AppConfig, baseDir string) string {
	return filepath.Join(DataDir(config, baseDir), "drivers.db")
}
