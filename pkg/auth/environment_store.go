package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(app *App) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(label string) (*App, error) {
	clientKey := os.Getenv("TTHARVEST_CLIENT_KEY")
	clientSecret := os.Getenv("TTHARVEST_CLIENT_SECRET")

	if clientKey == "" || clientSecret == "" {
		return nil, ErrCredentialsNotFound
	}

	// Environment variables don't carry a label, so we use "default" or the provided one
	if label == "" {
		label = "default"
	}

	return &App{
		Label:        label,
		ClientKey:    clientKey,
		ClientSecret: clientSecret,
		LastModified: time.Now(),
	}, nil
}

// List returns a single app if environment variables are set
func (e *EnvironmentStore) List() ([]*App, error) {
	app, err := e.Retrieve("")
	if err != nil {
		return []*App{}, nil
	}
	return []*App{app}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(label string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(label string) bool {
	return os.Getenv("TTHARVEST_CLIENT_KEY") != "" && os.Getenv("TTHARVEST_CLIENT_SECRET") != ""
}
