// Package cache implements the offline asset caching layer: inbound
// resource URLs are classified into five categories, each served with a
// cache-first or network-first strategy and held under an independent byte
// ceiling. Entries live in the Tier B map_cache collection so cached
// assets survive restarts.
package cache

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"portnavigator/storage"
)

// Category is an asset class with its own strategy and ceiling.
type Category string

const (
	CategoryMaps   Category = "maps"
	CategoryImages Category = "images"
	CategoryJSON   Category = "json"
	CategoryPDF    Category = "pdf"
	CategoryStatic Category = "static"
)

// categoryLimits are the per-category byte ceilings.
var categoryLimits = map[Category]int64{
	CategoryImages: 50 << 20,
	CategoryMaps:   30 << 20,
	CategoryJSON:   10 << 20,
	CategoryPDF:    15 << 20,
	CategoryStatic: 5 << 20,
}

// Classify buckets a URL into its asset category by path pattern.
func Classify(rawURL string) Category {
	lower := strings.ToLower(rawURL)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	if strings.Contains(lower, "/tiles/") || strings.Contains(lower, "/maps/") ||
		strings.Contains(lower, "geojson") || strings.Contains(lower, "arcgis") {
		return CategoryMaps
	}
	switch path.Ext(lower) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico":
		return CategoryImages
	case ".json":
		return CategoryJSON
	case ".pdf":
		return CategoryPDF
	default:
		return CategoryStatic
	}
}

// networkFirst reports whether a category prefers fresh data over the
// cached copy. Only JSON data does; everything else is cache-first.
func networkFirst(cat Category) bool {
	return cat == CategoryJSON
}

// Info describes one category's cache occupancy.
type Info struct {
	Entries    int   `json:"entries"`
	UsedBytes  int64 `json:"used_bytes"`
	LimitBytes int64 `json:"limit_bytes"`
}

// Manager routes asset fetches through the cache.
type Manager struct {
	tierB  *storage.TierB
	client *http.Client
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]int64 // key -> stored value length
	sizes   map[Category]int64
	keys    map[Category][]string // insertion order per category
	info    map[Category]Info
}

// NewManager builds an asset cache over the given Tier B store. A nil
// client falls back to http.DefaultClient.
func NewManager(tierB *storage.TierB, client *http.Client, logger *zap.Logger) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{
		tierB:   tierB,
		client:  client,
		logger:  logger,
		entries: make(map[string]int64),
		sizes:   make(map[Category]int64),
		keys:    make(map[Category][]string),
		info:    make(map[Category]Info),
	}
}

// cacheKey namespaces an entry inside map_cache by category.
func cacheKey(cat Category, url string) string {
	return string(cat) + "|" + url
}

// Initialize rebuilds the per-category size tracking from the persisted
// map_cache collection.
func (m *Manager) Initialize(ctx context.Context) error {
	keys, err := m.tierB.BlobKeys(ctx, storage.CollectionMapCache)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]int64)
	m.sizes = make(map[Category]int64)
	m.keys = make(map[Category][]string)
	for _, key := range keys {
		cat, _, ok := splitKey(key)
		if !ok {
			continue
		}
		value, found, err := m.tierB.GetBlob(ctx, storage.CollectionMapCache, key)
		if err != nil || !found {
			continue
		}
		m.entries[key] = int64(len(value))
		m.sizes[cat] += int64(len(value))
		m.keys[cat] = append(m.keys[cat], key)
	}
	return nil
}

func splitKey(key string) (Category, string, bool) {
	idx := strings.Index(key, "|")
	if idx < 0 {
		return "", "", false
	}
	return Category(key[:idx]), key[idx+1:], true
}

// Fetch returns the asset body for url, applying the category's strategy.
func (m *Manager) Fetch(ctx context.Context, url string) ([]byte, error) {
	cat := Classify(url)

	if networkFirst(cat) {
		body, err := m.fetchNetwork(ctx, url)
		if err == nil {
			m.store(ctx, cat, url, body)
			return body, nil
		}
		if cached, ok := m.lookup(ctx, cat, url); ok {
			m.logger.Debug("network fetch failed, serving cached copy",
				zap.String("url", url), zap.Error(err))
			return cached, nil
		}
		return nil, err
	}

	if cached, ok := m.lookup(ctx, cat, url); ok {
		return cached, nil
	}
	body, err := m.fetchNetwork(ctx, url)
	if err != nil {
		return nil, err
	}
	m.store(ctx, cat, url, body)
	return body, nil
}

func (m *Manager) fetchNetwork(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

func (m *Manager) lookup(ctx context.Context, cat Category, url string) ([]byte, bool) {
	value, found, err := m.tierB.GetBlob(ctx, storage.CollectionMapCache, cacheKey(cat, url))
	if err != nil || !found {
		return nil, false
	}
	body, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, false
	}
	return body, true
}

func (m *Manager) store(ctx context.Context, cat Category, url string, body []byte) {
	key := cacheKey(cat, url)
	value := base64.StdEncoding.EncodeToString(body)

	if err := m.tierB.PutBlob(ctx, storage.CollectionMapCache, key, value); err != nil {
		m.logger.Warn("failed to cache asset", zap.String("url", url), zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, tracked := m.entries[key]; tracked {
		// PutBlob is an upsert: a re-stored key keeps its slot in the
		// insertion order and only the size delta counts.
		m.sizes[cat] += int64(len(value)) - prev
	} else {
		m.sizes[cat] += int64(len(value))
		m.keys[cat] = append(m.keys[cat], key)
	}
	m.entries[key] = int64(len(value))

	// Over the ceiling: the source deletes the first oversized entry it
	// encounters rather than tracking recency, so this is deliberately
	// first-seen eviction, not LRU. The entry just written is never the
	// victim.
	limit := categoryLimits[cat]
	for m.sizes[cat] > limit && len(m.keys[cat]) > 1 {
		idx := 0
		if m.keys[cat][0] == key {
			idx = 1
		}
		victim := m.keys[cat][idx]
		if err := m.tierB.DeleteBlob(ctx, storage.CollectionMapCache, victim); err != nil {
			m.logger.Warn("failed to evict cached asset", zap.String("key", victim), zap.Error(err))
			break
		}
		m.keys[cat] = append(m.keys[cat][:idx], m.keys[cat][idx+1:]...)
		m.sizes[cat] -= m.entries[victim]
		delete(m.entries, victim)
	}
}

// RefreshInfo recomputes the per-category occupancy snapshot. Wired to the
// short cache-info polling interval.
func (m *Manager) RefreshInfo(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := make(map[Category]Info, len(categoryLimits))
	for cat, limit := range categoryLimits {
		info[cat] = Info{
			Entries:    len(m.keys[cat]),
			UsedBytes:  m.sizes[cat],
			LimitBytes: limit,
		}
	}
	m.info = info
}

// InfoSnapshot returns the last refreshed occupancy snapshot.
func (m *Manager) InfoSnapshot() map[Category]Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Category]Info, len(m.info))
	for k, v := range m.info {
		out[k] = v
	}
	return out
}
