package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// KeyPrefix namespaces every Tier A key so ClearPrefix can wipe the
// portal's data without touching unrelated keys.
const KeyPrefix = "port-navigator-"

// Well-known Tier A keys.
const (
	KeyUser       = KeyPrefix + "user"
	KeySettings   = KeyPrefix + "settings"
	KeyWarehouses = KeyPrefix + "warehouses"
	KeyImportLogs = KeyPrefix + "import-logs"
)

// KV is the Tier A store: a small synchronous key→string map snapshotted
// to a single JSON file. Values are JSON-serialized on write and parsed on
// read. Read failures (missing file, corrupt JSON) surface as absence,
// never as errors, so callers can fall back to defaults.
type KV struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
	logger *zap.Logger
}

// NewKV opens (or lazily creates) the Tier A snapshot file under dir.
func NewKV(dir string, logger *zap.Logger) *KV {
	kv := &KV{
		path:   filepath.Join(dir, "tier_a.json"),
		values: make(map[string]string),
		logger: logger,
	}
	kv.load()
	return kv
}

func (kv *KV) load() {
	data, err := os.ReadFile(kv.path)
	if err != nil {
		return // absent file reads as empty store
	}
	if err := json.Unmarshal(data, &kv.values); err != nil {
		kv.logger.Warn("tier A snapshot corrupt, starting empty", zap.Error(err))
		kv.values = make(map[string]string)
	}
}

// persist writes the snapshot. Caller holds the lock.
func (kv *KV) persist() error {
	if err := os.MkdirAll(filepath.Dir(kv.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(kv.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(kv.path, data, 0o644)
}

// Set serializes v and stores it under key.
func (kv *KV) Set(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = string(data)
	return kv.persist()
}

// Get parses the value under key into out. A false return means absent;
// corrupt stored JSON is treated as absent and logged.
func (kv *KV) Get(key string, out interface{}) bool {
	kv.mu.RLock()
	raw, ok := kv.values[key]
	kv.mu.RUnlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		kv.logger.Warn("tier A value unreadable, treating as absent",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Delete removes a key.
func (kv *KV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.values, key)
	return kv.persist()
}

// ClearPrefix removes every key carrying the given prefix and reports how
// many were removed. Keys outside the prefix are untouched.
func (kv *KV) ClearPrefix(prefix string) (int, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	removed := 0
	for k := range kv.values {
		if strings.HasPrefix(k, prefix) {
			delete(kv.values, k)
			removed++
		}
	}
	return removed, kv.persist()
}

// Keys returns the stored keys in sorted order.
func (kv *KV) Keys() []string {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	keys := make([]string, 0, len(kv.values))
	for k := range kv.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SizeBytes sums the serialized lengths of all stored values. This is the
// same approximation the portal UI was calibrated against, not an on-disk
// measurement.
func (kv *KV) SizeBytes() int64 {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	var total int64
	for k, v := range kv.values {
		total += int64(len(k) + len(v))
	}
	return total
}
