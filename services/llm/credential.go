// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// ErrMissingCredential is returned when a sealed credential is opened but
// was never configured.
var ErrMissingCredential = errors.New("credential not configured")

// MinMlockLimitKB is the locked-memory limit below which sealed
// credentials may be swapped to disk.
const MinMlockLimitKB = 64

// SecretsDir is where container secrets are mounted.
var SecretsDir = "/run/secrets"

var memguardInitOnce sync.Once

// initMemguard sets up interrupt handling and reports the mlock limit once
// per process.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		sufficient, limitKB := checkMlockLimit()
		if sufficient {
			slog.Debug("Secure memory initialized", "mlock_limit_kb", limitKB)
			return
		}
		slog.Warn("mlock limit insufficient, credentials may be swapped",
			"current_limit_kb", limitKB,
			"required_kb", MinMlockLimitKB,
		)
	})
}

func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}

// Credential holds a provider API key sealed in an encrypted enclave.
//
// # Description
//
// The plaintext only exists in locked memory for the duration of Use. A
// Credential built from an empty value is valid but not Present, which is
// how unconfigured providers are represented.
//
// # Thread Safety
//
// Safe for concurrent use; each Use opens its own buffer.
type Credential struct {
	name    string
	enclave *memguard.Enclave
}

// NewCredential seals value under name. The caller's copy of value is not
// wiped; strings are immutable.
func NewCredential(name, value string) *Credential {
	c := &Credential{name: name}
	value = strings.TrimSpace(value)
	if value == "" {
		return c
	}
	initMemguard()
	c.enclave = memguard.NewEnclave([]byte(value))
	return c
}

// LoadCredential seals value when non-empty, otherwise falls back to the
// secret file SecretsDir/<secretName>.
func LoadCredential(name, value, secretName string) *Credential {
	if strings.TrimSpace(value) != "" {
		return NewCredential(name, value)
	}
	if secretName == "" {
		return NewCredential(name, "")
	}
	path := filepath.Join(SecretsDir, secretName)
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("Credential not configured", "name", name, "secret_path", path)
		return NewCredential(name, "")
	}
	slog.Info("Read credential from container secrets", "name", name)
	return NewCredential(name, string(raw))
}

// Name returns the credential label used in logs.
func (c *Credential) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Present reports whether a key is configured. Only this flag is ever
// exposed outside the process.
func (c *Credential) Present() bool {
	return c != nil && c.enclave != nil
}

// Use opens the enclave and passes the plaintext key to fn. The locked
// buffer is destroyed when fn returns, so key (and anything built around
// it) must not be retained past fn. Copy it with strings.Clone if needed.
func (c *Credential) Use(fn func(key string) error) error {
	if !c.Present() {
		return fmt.Errorf("%s: %w", c.Name(), ErrMissingCredential)
	}
	buf, err := c.enclave.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s credential: %w", c.name, err)
	}
	defer buf.Destroy()
	return fn(buf.String())
}

// PurgeAllSecureMemory wipes all memguard-allocated memory. Called during
// shutdown.
func PurgeAllSecureMemory() {
	memguard.Purge()
	slog.Info("Purged all secure memory")
}
