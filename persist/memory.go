package persist

import (
	"sync"

	"github.com/NebulousLabs/errors"
	"github.com/sirupsen/logrus"

	"github.com/nebulouslabs/blockserver/protoerr"
)

// ErrKeyNotFound is returned by DeleteKey when no values are registered
// under the requested key.
var ErrKeyNotFound = errors.Extend(errors.New("persist: key not found"), protoerr.ErrNotFound)

// DataProvider is the full external persistence contract: settings,
// binary blobs, multi-valued keys, and log sinks. world.DataProvider is
// the narrow binary-only slice of this interface the column store
// depends on; MemoryDataProvider satisfies both.
type DataProvider interface {
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error

	GetBinary(key string) ([]byte, bool, error)
	SaveBinary(key string, data []byte) error

	GetValues(key string) ([]string, error)
	InsertValue(key, value string) error
	DeleteValues(key, value string) error
	DeleteKey(key string) error

	WriteLog(text string, level string) error
	WriteChatLog(from, to, msg, notes string) error
}

// MemoryDataProvider is a goroutine-safe, in-memory reference
// DataProvider. It is the default backing store for tests and for a
// server run without a real persistence layer configured; every method
// is safe to call concurrently from pool tasks, matching the contract's
// "all methods may block; the core always calls them from pool tasks"
// requirement.
type MemoryDataProvider struct {
	mu       sync.RWMutex
	settings map[string]string
	binary   map[string][]byte
	values   map[string][]string

	log *Logger
}

// NewMemoryDataProvider returns an empty MemoryDataProvider. If log is
// non-nil, WriteLog and WriteChatLog entries are also recorded there;
// otherwise they are retained only in memory.
func NewMemoryDataProvider(log *Logger) *MemoryDataProvider {
	return &MemoryDataProvider{
		settings: make(map[string]string),
		binary:   make(map[string][]byte),
		values:   make(map[string][]string),
		log:      log,
	}
}

// GetSetting returns the string stored under key, if any.
func (m *MemoryDataProvider) GetSetting(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

// SetSetting stores value under key, replacing any prior value.
func (m *MemoryDataProvider) SetSetting(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// DeleteSetting removes key's value, if present.
func (m *MemoryDataProvider) DeleteSetting(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settings, key)
	return nil
}

// GetBinary returns the blob stored under key, if any. It satisfies
// world.DataProvider.
func (m *MemoryDataProvider) GetBinary(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.binary[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

// SaveBinary stores data under key, replacing any prior blob. It
// satisfies world.DataProvider.
func (m *MemoryDataProvider) SaveBinary(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.binary[key] = cp
	return nil
}

// GetValues returns every value inserted under key, in insertion order.
func (m *MemoryDataProvider) GetValues(key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vs := m.values[key]
	out := make([]string, len(vs))
	copy(out, vs)
	return out, nil
}

// InsertValue appends value to key's value list.
func (m *MemoryDataProvider) InsertValue(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append(m.values[key], value)
	return nil
}

// DeleteValues removes every occurrence of value from key's value list.
func (m *MemoryDataProvider) DeleteValues(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := m.values[key]
	kept := vs[:0]
	for _, v := range vs {
		if v != value {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		delete(m.values, key)
	} else {
		m.values[key] = kept
	}
	return nil
}

// DeleteKey removes key and every value registered under it.
func (m *MemoryDataProvider) DeleteKey(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return ErrKeyNotFound
	}
	delete(m.values, key)
	return nil
}

// WriteLog records a diagnostic line at the given level ("info", "warn",
// "error", ...).
func (m *MemoryDataProvider) WriteLog(text string, level string) error {
	if m.log == nil {
		return nil
	}
	switch level {
	case "error":
		m.log.Error(text)
	case "warn", "warning":
		m.log.Warn(text)
	default:
		m.log.Info(text)
	}
	return nil
}

// WriteChatLog records one chat message for moderation/audit purposes.
func (m *MemoryDataProvider) WriteChatLog(from, to, msg, notes string) error {
	if m.log == nil {
		return nil
	}
	m.log.WithFields(logrus.Fields{"from": from, "to": to, "notes": notes}).Info(msg)
	return nil
}
