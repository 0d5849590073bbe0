package testutil

import (
	"sync"

	"github.com/arthur-debert/kitman/pkg/hostos"
)

// FakeHost is an in-memory hostos.Host. Links and replacements are only
// recorded, never performed.
type FakeHost struct {
	mu sync.Mutex

	Entries      map[string]hostos.UninstallEntry
	Uninstallers map[string]string
	Links        map[string]string
	Replaced     map[string]string
	Removed      []string
	// Err, when set, is returned by every mutating call.
	Err error
}

// NewFakeHost returns an empty fake.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		Entries:      map[string]hostos.UninstallEntry{},
		Uninstallers: map[string]string{},
		Links:        map[string]string{},
		Replaced:     map[string]string{},
	}
}

func (h *FakeHost) RegisterUninstall(e hostos.UninstallEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.Entries[e.ID] = e
	return nil
}

func (h *FakeHost) UnregisterUninstall(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	delete(h.Entries, id)
	return nil
}

func (h *FakeHost) LookupUninstallCommand(displayName string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cmd, ok := h.Uninstallers[displayName]
	return cmd, ok
}

func (h *FakeHost) LinkExecutable(target, link string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.Links[link] = target
	return nil
}

func (h *FakeHost) ReplaceExecutable(current, replacement string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.Replaced[current] = replacement
	return nil
}

func (h *FakeHost) RemoveExecutable(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.Removed = append(h.Removed, path)
	delete(h.Links, path)
	return nil
}
