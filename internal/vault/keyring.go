package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringBackend stores entries in the operating system credential store
// (Keychain, Secret Service or Windows Credential Manager).
type KeyringBackend struct{}

func (KeyringBackend) Get(_ context.Context, service, account string) (string, bool, error) {
	value, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keyring get %s/%s: %w", service, account, err)
	}
	return value, true, nil
}

func (KeyringBackend) Set(_ context.Context, service, account, value string) error {
	if err := keyring.Set(service, account, value); err != nil {
		return fmt.Errorf("keyring set %s/%s: %w", service, account, err)
	}
	return nil
}

func (KeyringBackend) Delete(_ context.Context, service, account string) error {
	err := keyring.Delete(service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s/%s: %w", service, account, err)
	}
	return nil
}
