package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/crowdcast/presenced/internal/logger"
)

// OBSConfig holds the connection settings for the OBS websocket server.
type OBSConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Password string `json:"password" yaml:"password"`
}

// Config represents the daemon configuration
type Config struct {
	ServerPort int    `json:"server_port" yaml:"server_port"`
	LogLevel   string `json:"log_level" yaml:"log_level"`

	// PollIntervalMs is the presence poll period in milliseconds.
	PollIntervalMs int `json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// MaxTrackedSources bounds how many capture sources are tracked at once.
	MaxTrackedSources int `json:"max_tracked_sources" yaml:"max_tracked_sources"`

	// ManualCapture is the initial manual-override value used on platforms
	// where frontmost-app detection is unavailable.
	ManualCapture bool `json:"manual_capture" yaml:"manual_capture"`

	OBS OBSConfig `json:"obs" yaml:"obs"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "presenced")
	defaultConfigPath := filepath.Join(configDir, "config.yaml")

	actualConfigPath := defaultConfigPath
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = m.getDefaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

// getDefaults returns default configuration
func (m *Manager) getDefaults() *Config {
	return &Config{
		ServerPort:        8099,
		LogLevel:          "info",
		PollIntervalMs:    200,
		MaxTrackedSources: 64,
		ManualCapture:     true,
		OBS: OBSConfig{
			Host: "localhost",
			Port: 4455,
		},
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	// Unmarshal over the defaults so hand-edited configs can omit keys.
	// This matters for manual_capture, whose default is true.
	cfg := *m.getDefaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = 200
	}
	if cfg.MaxTrackedSources <= 0 {
		cfg.MaxTrackedSources = 64
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()

	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return m.getDefaults()
	}

	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = m.getDefaults()
	}

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// SetPort updates the server port
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	if m.config == nil {
		m.config = m.getDefaults()
	}
	m.config.ServerPort = port
	m.mu.Unlock()
	return m.Save()
}

// GetPort returns the server port
func (m *Manager) GetPort() int {
	return m.Get().ServerPort
}

// SetLogLevel updates the log level
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	if m.config == nil {
		m.config = m.getDefaults()
	}
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// GetConfigPath returns the path of the loaded config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
