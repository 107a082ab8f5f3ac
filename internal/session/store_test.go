// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore(0)
	if s.Initialized("a") {
		t.Fatal("Initialized(a) = true before Add")
	}
	s.Add("a")
	s.Add("a")
	if !s.Initialized("a") {
		t.Fatal("Initialized(a) = false after Add")
	}
	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	s.Remove("a")
	if s.Initialized("a") {
		t.Error("Initialized(a) = true after Remove")
	}
}

func TestStoreTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(time.Minute)
	s.now = func() time.Time { return now }

	s.Add("a")
	now = now.Add(59 * time.Second)
	if !s.Initialized("a") {
		t.Fatal("session expired early")
	}
	now = now.Add(2 * time.Second)
	if s.Initialized("a") {
		t.Fatal("session did not expire")
	}
	if got := s.Len(); got != 0 {
		t.Errorf("Len() = %d after expiry, want 0", got)
	}
}

func TestStoreConcurrent(t *testing.T) {
	s := NewStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i%10)
			s.Add(id)
			_ = s.Initialized(id)
		}(i)
	}
	wg.Wait()
	if got := s.Len(); got != 10 {
		t.Errorf("Len() = %d, want 10", got)
	}
	s.Clear()
	if got := s.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
}
