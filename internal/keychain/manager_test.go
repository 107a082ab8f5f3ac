// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestPasswordRoundTrip(t *testing.T) {
	m := NewManager(keyring.NewArrayKeyring(nil))

	if _, err := m.LoadPassword(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadPassword on empty ring = %v, want ErrNotFound", err)
	}
	if err := m.SavePassword("s3cret"); err != nil {
		t.Fatalf("SavePassword: %v", err)
	}
	got, err := m.LoadPassword()
	if err != nil || got != "s3cret" {
		t.Fatalf("LoadPassword = %q, %v", got, err)
	}
	if err := m.ClearPassword(); err != nil {
		t.Fatalf("ClearPassword: %v", err)
	}
	if _, err := m.LoadPassword(); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadPassword after clear = %v, want ErrNotFound", err)
	}
	if err := m.ClearPassword(); err != nil {
		t.Errorf("ClearPassword twice: %v", err)
	}
}

func TestSavePasswordRejectsEmpty(t *testing.T) {
	m := NewManager(keyring.NewArrayKeyring(nil))
	if err := m.SavePassword(""); err == nil {
		t.Error("expected error for empty password")
	}
}
