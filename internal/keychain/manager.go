// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain keeps the engine password in the OS credential store so it
// never has to be written to the config file.
//
// macOS Keychain, Windows Credential Manager, the freedesktop Secret Service,
// KWallet and pass are used when available. There is no file fallback.
package keychain

import (
	"errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our credential store namespace.
const ServiceName = "polenta"

// KeyEnginePassword is the item holding the engine password.
const KeyEnginePassword = "engine_password"

// ErrNotFound is returned when no password is stored.
var ErrNotFound = errors.New("no engine password stored")

var (
	globalManager *Manager
	mu            sync.Mutex
)

// Manager provides thread-safe access to the stored engine password.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager wraps an already opened keyring.
func NewManager(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the process-wide manager backed by the OS keyring.
// A failed open is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	globalManager = NewManager(ring)
	return globalManager, nil
}

func openRing() (keyring.Keyring, error) {
	var backends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		backends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		backends = []keyring.BackendType{keyring.WinCredBackend}
	default:
		backends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: backends,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, errors.New("no OS credential store available; set engine.password or POLENTA_ENGINE__PASSWORD instead")
	}
	return ring, nil
}

// SavePassword stores the engine password.
func (m *Manager) SavePassword(password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if password == "" {
		return errors.New("refusing to store an empty password")
	}
	return m.ring.Set(keyring.Item{
		Key:   KeyEnginePassword,
		Data:  []byte(password),
		Label: "polenta engine password",
	})
}

// LoadPassword returns the stored engine password or ErrNotFound.
func (m *Manager) LoadPassword() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, err := m.ring.Get(KeyEnginePassword)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

// ClearPassword removes the stored password. Removing a missing item is not an error.
func (m *Manager) ClearPassword() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ring.Remove(KeyEnginePassword); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
