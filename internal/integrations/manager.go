// Package integrations implements Envoy's Integration Manager (§4.E): CRUD of
// named tool groups, credential persistence to an on-disk environment file
// with live process env hot-reload, and masked-value reporting for the UI.
//
// Grounded structurally on internal/marketplace/manager.go's
// Manager-wraps-Store pattern (that file's actual domain — a signed remote
// plugin registry — is not reused; only its wiring shape is).
package integrations

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/pkg/envoy"
)

// Manager owns integration CRUD and credential persistence.
type Manager struct {
	store   *store.Store
	envPath string
	mu      sync.Mutex // serializes env-file read-modify-write
}

// New returns a Manager that persists credentials to envPath.
func New(st *store.Store, envPath string) *Manager {
	return &Manager{store: st, envPath: envPath}
}

// Create registers a new integration.
func (m *Manager) Create(ctx context.Context, in *envoy.Integration) error {
	return m.store.CreateIntegration(ctx, in)
}

// Get fetches an integration by name.
func (m *Manager) Get(ctx context.Context, name string) (*envoy.Integration, error) {
	return m.store.GetIntegration(ctx, name)
}

// List returns every integration.
func (m *Manager) List(ctx context.Context) ([]*envoy.Integration, error) {
	return m.store.ListIntegrations(ctx)
}

// Delete removes an integration (cascading to its tools via the store).
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.store.DeleteIntegration(ctx, name)
}

// Configured reports whether every required key in an integration's config
// schema resolves to a non-empty value in the live environment (§4.E).
func Configured(in *envoy.Integration) bool {
	for _, key := range in.ConfigSchema {
		if !key.Required {
			continue
		}
		if os.Getenv(key.Key) == "" {
			return false
		}
	}
	return true
}

// Mask returns the UI-facing masked representation of a declared key's current
// value: null (as Go nil) if unset, "***" if length <= 8, else
// first3***last3 (§4.E masking rule).
func Mask(key string) any {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	if len(val) <= 8 {
		return "***"
	}
	return val[:3] + "***" + val[len(val)-3:]
}

// MaskedValues returns the masked representation of every key declared in an
// integration's config schema.
func MaskedValues(in *envoy.Integration) map[string]any {
	out := make(map[string]any, len(in.ConfigSchema))
	for _, key := range in.ConfigSchema {
		out[key.Key] = Mask(key.Key)
	}
	return out
}

// SetConfig applies posted config values for an integration: filters incoming
// keys to those declared in config_schema, drops empty strings, upserts the
// remainder into the on-disk env file preserving unrelated lines, and updates
// the live process environment immediately (§4.E credential persistence).
func (m *Manager) SetConfig(ctx context.Context, in *envoy.Integration, values map[string]string) error {
	declared := make(map[string]struct{}, len(in.ConfigSchema))
	for _, key := range in.ConfigSchema {
		declared[key.Key] = struct{}{}
	}

	filtered := make(map[string]string)
	for k, v := range values {
		if _, ok := declared[k]; !ok {
			continue
		}
		if v == "" {
			continue
		}
		filtered[k] = v
	}
	if len(filtered) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.upsertEnvFile(filtered); err != nil {
		return fmt.Errorf("integrations: persist config: %w", err)
	}
	for k, v := range filtered {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("integrations: set env %s: %w", k, err)
		}
	}
	return nil
}

// upsertEnvFile rewrites m.envPath, replacing any existing KEY=VALUE line for
// a key in updates and appending keys not already present, while preserving
// every other line (including blanks and comments) verbatim.
func (m *Manager) upsertEnvFile(updates map[string]string) error {
	if m.envPath == "" {
		return fmt.Errorf("no environment file configured")
	}

	existingLines, err := readLines(m.envPath)
	if err != nil {
		return err
	}

	remaining := make(map[string]string, len(updates))
	for k, v := range updates {
		remaining[k] = v
	}

	out := make([]string, 0, len(existingLines)+len(updates))
	for _, line := range existingLines {
		key, ok := envLineKey(line)
		if !ok {
			out = append(out, line)
			continue
		}
		if val, pending := remaining[key]; pending {
			out = append(out, key+"="+val)
			delete(remaining, key)
			continue
		}
		out = append(out, line)
	}

	// Append new keys in deterministic order for reproducible output.
	keys := make([]string, 0, len(remaining))
	for k := range remaining {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+remaining[k])
	}

	return os.WriteFile(m.envPath, []byte(strings.Join(out, "\n")+"\n"), 0o600)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// envLineKey extracts the key from a "KEY=VALUE" line, returning false for
// blank lines, comments, or malformed lines.
func envLineKey(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	idx := strings.IndexByte(trimmed, '=')
	if idx <= 0 {
		return "", false
	}
	return trimmed[:idx], true
}
