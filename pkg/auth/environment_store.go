package auth

import (
	"os"
	"time"
)

// EnvVars maps each service to the variable it can be read from
var EnvVars = map[Service]string{
	ServiceProvider:      "REELSCOUT_PROVIDER_TOKEN",
	ServiceTranscription: "REELSCOUT_TRANSCRIPTION_TOKEN",
}

// EnvironmentStore is a read-only store backed by environment variables
type EnvironmentStore struct {
	getenv func(string) string
}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(service Service) (*Credential, error) {
	name, ok := EnvVars[service]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	token := e.getenv(name)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Credential{Service: service, Token: token, LastModified: time.Now()}, nil
}

func (e *EnvironmentStore) List() ([]*Credential, error) {
	var creds []*Credential
	for _, svc := range Services {
		if c, err := e.Retrieve(svc); err == nil {
			creds = append(creds, c)
		}
	}
	return creds, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(service Service) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(service Service) bool {
	_, err := e.Retrieve(service)
	return err == nil
}
