package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server  ServerSettings  `json:"server"`
	Storage StorageSettings `json:"storage"`
	Remote  RemoteSettings  `json:"remote"`
	Admin   AdminSettings   `json:"admin"`
	Log     LogConfig       `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type StorageSettings struct {
	Directory string `json:"directory"`
}

// RemoteSettings configures the optional cloud mirror. An empty BaseURL
// disables remote sync entirely.
type RemoteSettings struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	WriteRetries   int    `json:"writeRetries"`
}

// AdminCredential is one username/bcrypt-hash pair allowed into the admin
// surface.
type AdminCredential struct {
	User         string `json:"user"`
	PasswordHash string `json:"passwordHash"`
}

type AdminSettings struct {
	Credentials     []AdminCredential `json:"credentials"`
	SessionTTLHours int               `json:"sessionTtlHours"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8787,
		},
		Storage: StorageSettings{
			Directory: "cache",
		},
		Remote: RemoteSettings{
			BaseURL:        "",
			TimeoutSeconds: 10,
			WriteRetries:   3,
		},
		Admin: AdminSettings{
			SessionTTLHours: 24,
		},
		Log: LogConfig{
			File:       "",
			MaxSize:    25,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings.json.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir makes sure the directory for the config file exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	settings := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&settings); err != nil {
		return Settings{}, err
	}

	if settings.Remote.TimeoutSeconds <= 0 {
		settings.Remote.TimeoutSeconds = 10
	}
	if settings.Remote.WriteRetries <= 0 {
		settings.Remote.WriteRetries = 3
	}
	if settings.Admin.SessionTTLHours <= 0 {
		settings.Admin.SessionTTLHours = 24
	}

	return settings, nil
}

// Save writes settings.json atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
