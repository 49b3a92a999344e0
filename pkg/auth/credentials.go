package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Service names an external API whose token we keep
type Service string

const (
	ServiceProvider      Service = "provider"
	ServiceTranscription Service = "transcription"
)

// Services lists every service a token can be stored for
var Services = []Service{ServiceProvider, ServiceTranscription}

// ParseService accepts a service name from the command line
func ParseService(s string) (Service, error) {
	for _, svc := range Services {
		if string(svc) == s {
			return svc, nil
		}
	}
	return "", fmt.Errorf("unknown service %q (want provider or transcription)", s)
}

// Credential is an API token for one service
type Credential struct {
	Service      Service   `json:"service"`
	Token        string    `json:"token"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving tokens
type CredentialStore interface {
	Store(cred *Credential) error
	Retrieve(service Service) (*Credential, error)
	List() ([]*Credential, error)
	Delete(service Service) error
	Exists(service Service) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager tries the system keychain first, then an encrypted file in
// the config directory, then the environment.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over explicit stores, in priority order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the token using the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Service == "" {
		return errors.New("service is required")
	}
	if cred.Token == "" {
		return errors.New("token is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the token from the first store that has it
func (m *Manager) Retrieve(service Service) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(service); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrCredentialsNotFound, service)
}

// Token returns the stored token, or "" when none is stored
func (m *Manager) Token(service Service) string {
	cred, err := m.Retrieve(service)
	if err != nil {
		return ""
	}
	return cred.Token
}

// List returns the most recently modified credential per service
func (m *Manager) List() ([]*Credential, error) {
	latest := make(map[Service]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, c := range creds {
			if existing, ok := latest[c.Service]; !ok || c.LastModified.After(existing.LastModified) {
				latest[c.Service] = c
			}
		}
	}

	// keyrings cannot enumerate, so probe each known service
	for _, svc := range Services {
		if _, ok := latest[svc]; ok {
			continue
		}
		if c, err := m.Retrieve(svc); err == nil {
			latest[svc] = c
		}
	}

	result := make([]*Credential, 0, len(latest))
	for _, svc := range Services {
		if c, ok := latest[svc]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// Delete removes the token from every store that holds it
func (m *Manager) Delete(service Service) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(service); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w for %s", ErrCredentialsNotFound, service)
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
		configDir = filepath.Join(home, "Library", "Application Support", "reelscout")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "reelscout")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "reelscout")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "reelscout")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Mask hides all but the first and last 4 characters of a token
func Mask(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
