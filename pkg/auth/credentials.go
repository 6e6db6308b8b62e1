package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// App represents a TikTok Research API application's credentials
type App struct {
	Label        string    `json:"label"`
	ClientKey    string    `json:"client_key"`
	ClientSecret string    `json:"client_secret"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for a given app
	Store(app *App) error

	// Retrieve gets credentials for a specific label
	Retrieve(label string) (*App, error)

	// List returns all stored apps
	List() ([]*App, error)

	// Delete removes credentials for a specific label
	Delete(label string) error

	// Exists checks if credentials exist for a label
	Exists(label string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Add environment store as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves credentials using the first available store
func (m *Manager) Store(app *App) error {
	if app.Label == "" {
		return errors.New("label is required")
	}
	if app.ClientKey == "" {
		return errors.New("client key is required")
	}
	if app.ClientSecret == "" {
		return errors.New("client secret is required")
	}

	app.LastModified = time.Now()

	// Try each store in order
	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(app); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(label string) (*App, error) {
	for _, store := range m.stores {
		if app, err := store.Retrieve(label); err == nil && app != nil {
			return app, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for app: %s", label)
}

// RetrieveDefault gets credentials for the default app or the first available
func (m *Manager) RetrieveDefault() (*App, error) {
	// Environment variables take precedence when set
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if app, err := envStore.Retrieve(""); err == nil && app != nil {
			return app, nil
		}
	}

	apps, err := m.List()
	if err == nil && len(apps) > 0 {
		return apps[0], nil
	}

	return nil, errors.New("no credentials found")
}

// List returns all stored apps from all stores
func (m *Manager) List() ([]*App, error) {
	appMap := make(map[string]*App)

	for _, store := range m.stores {
		apps, err := store.List()
		if err != nil {
			continue
		}
		for _, app := range apps {
			// Use the most recently modified version
			if existing, ok := appMap[app.Label]; !ok || app.LastModified.After(existing.LastModified) {
				appMap[app.Label] = app
			}
		}
	}

	var result []*App
	for _, app := range appMap {
		result = append(result, app)
	}

	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(label string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(label); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for app: %s", label)
	}

	return nil
}

// DeleteAll removes all stored credentials
func (m *Manager) DeleteAll() error {
	apps, err := m.List()
	if err != nil {
		return err
	}

	for _, app := range apps {
		_ = m.Delete(app.Label) // Ignore individual errors
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "ttharvest")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "ttharvest")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "ttharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "ttharvest")
		}
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeApp creates a copy of the app with sensitive data masked
func SanitizeApp(app *App) *App {
	if app == nil {
		return nil
	}

	return &App{
		Label:        app.Label,
		ClientKey:    maskString(app.ClientKey),
		ClientSecret: maskString(app.ClientSecret),
		LastModified: app.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
