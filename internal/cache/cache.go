// Package cache implements the analysis cache (C4): a content-addressed,
// JSON-file-per-record store of FeatureRecords with mtime-based
// invalidation, crash-safe writes, and age/size eviction.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/djcrate/engine/internal/model"
)

var (
	// ErrCorrupt is returned when a cache entry's JSON cannot be parsed;
	// the caller should treat this the same as a miss and re-extract.
	ErrCorrupt = errors.New("cache: entry corrupt")
)

// fileRecord is the on-disk shape of one `<hex-key>.json` cache file.
type fileRecord struct {
	FilePath     string               `json:"file_path"`
	CachedAt     int64                `json:"cached_at"`
	AnalysisData model.FeatureRecord  `json:"analysis_data"`
}

// metaEntry is one entry in cache_metadata.json's `files` map.
type metaEntry struct {
	FilePath        string `json:"file_path"`
	CachePath       string `json:"cache_path"`
	CachedAt        int64  `json:"cached_at"`
	LastAccessed    int64  `json:"last_accessed"`
	OriginalMtime   int64  `json:"original_mtime"`
	CacheSizeBytes  int64  `json:"cache_size_bytes"`
}

// metadata is the on-disk shape of cache_metadata.json.
type metadata struct {
	Created         int64                 `json:"created"`
	LastCleanup     int64                 `json:"last_cleanup"`
	TotalFiles      int                   `json:"total_files"`
	TotalSizeBytes  int64                 `json:"total_size_bytes"`
	Files           map[string]metaEntry  `json:"files"`
}

// Cache is the analysis cache. One Cache instance owns one directory;
// metadata mutation is single-writer, guarded by mu.
type Cache struct {
	dir    string
	logger *slog.Logger

	mu   sync.RWMutex
	meta metadata

	// inflight coalesces concurrent requests for the same key so at
	// most one extraction runs per track at a time (spec §4.4). This is
	// hand-rolled sync.Mutex+map rather than a request-coalescing
	// library: the pack has no example of one, and the concern is small
	// enough that stdlib primitives are the idiomatic choice here.
	inflightMu sync.Mutex
	inflight   map[string]*sync.WaitGroup
}

// Open loads (or initializes) the cache at dir.
func Open(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}

	c := &Cache{dir: dir, logger: logger, inflight: make(map[string]*sync.WaitGroup)}

	metaPath := c.metadataPath()
	data, err := os.ReadFile(metaPath)
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, &c.meta); jerr != nil {
			logger.Warn("cache: metadata corrupt, starting fresh", "error", jerr)
			c.meta = freshMetadata()
		}
	case os.IsNotExist(err):
		c.meta = freshMetadata()
	default:
		return nil, fmt.Errorf("cache: read metadata: %w", err)
	}

	if c.meta.Files == nil {
		c.meta.Files = make(map[string]metaEntry)
	}
	return c, nil
}

func freshMetadata() metadata {
	return metadata{Created: time.Now().Unix(), Files: make(map[string]metaEntry)}
}

func (c *Cache) metadataPath() string { return filepath.Join(c.dir, "cache_metadata.json") }

func (c *Cache) entryPath(key string) string { return filepath.Join(c.dir, key+".json") }

// Key computes the content-address for a track: a hash of its path,
// size, mtime (seconds) and decoder profile, per spec §4.4 — the mtime
// binding is how invalidation happens.
func Key(trackID model.TrackId, fileSize int64, mtimeSeconds int64, decoderProfileID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%s", trackID, fileSize, mtimeSeconds, decoderProfileID)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached record for trackID iff a current entry exists
// and the source file still exists. It touches last_accessed.
func (c *Cache) Get(trackID model.TrackId, fileSize, mtimeSeconds int64, decoderProfileID string) (model.FeatureRecord, bool, error) {
	key := Key(trackID, fileSize, mtimeSeconds, decoderProfileID)

	c.mu.RLock()
	_, known := c.meta.Files[key]
	c.mu.RUnlock()
	if !known {
		return model.FeatureRecord{}, false, nil
	}

	info, err := os.Stat(string(trackID))
	if err != nil {
		return model.FeatureRecord{}, false, nil
	}
	if drift := info.ModTime().Unix() - mtimeSeconds; drift > 1 || drift < -1 {
		return model.FeatureRecord{}, false, nil
	}

	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return model.FeatureRecord{}, false, nil
		}
		return model.FeatureRecord{}, false, fmt.Errorf("cache: read entry: %w", err)
	}

	var fr fileRecord
	if err := json.Unmarshal(data, &fr); err != nil {
		c.logger.Warn("cache: entry corrupt, treating as miss", "key", key, "error", err)
		return model.FeatureRecord{}, false, fmt.Errorf("%w: %s", ErrCorrupt, key)
	}

	c.mu.Lock()
	if entry, ok := c.meta.Files[key]; ok {
		entry.LastAccessed = time.Now().Unix()
		c.meta.Files[key] = entry
	}
	c.mu.Unlock()
	_ = c.saveMetadata()

	return fr.AnalysisData, true, nil
}

// Put writes record under trackID's current key, atomically.
func (c *Cache) Put(trackID model.TrackId, fileSize, mtimeSeconds int64, decoderProfileID string, record model.FeatureRecord) error {
	key := Key(trackID, fileSize, mtimeSeconds, decoderProfileID)

	fr := fileRecord{FilePath: string(trackID), CachedAt: time.Now().Unix(), AnalysisData: record}
	data, err := json.MarshalIndent(fr, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}

	finalPath := c.entryPath(key)
	if err := writeAtomic(finalPath, data); err != nil {
		return fmt.Errorf("cache: write entry: %w", err)
	}

	size := int64(len(data))
	now := time.Now().Unix()

	c.mu.Lock()
	c.meta.Files[key] = metaEntry{
		FilePath:       string(trackID),
		CachePath:      finalPath,
		CachedAt:       now,
		LastAccessed:   now,
		OriginalMtime:  mtimeSeconds,
		CacheSizeBytes: size,
	}
	c.meta.TotalFiles = len(c.meta.Files)
	c.recomputeTotalSizeLocked()
	c.mu.Unlock()

	return c.saveMetadata()
}

// Remove deletes the entry for key, if present.
func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	entry, ok := c.meta.Files[key]
	if ok {
		delete(c.meta.Files, key)
		c.meta.TotalFiles = len(c.meta.Files)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := os.Remove(entry.CachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: remove entry file: %w", err)
	}
	c.mu.Lock()
	c.recomputeTotalSizeLocked()
	c.mu.Unlock()
	return c.saveMetadata()
}

// Clear empties the cache entirely.
func (c *Cache) Clear() error {
	c.mu.Lock()
	keys := make([]string, 0, len(c.meta.Files))
	for k := range c.meta.Files {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	for _, k := range keys {
		if err := c.Remove(k); err != nil {
			return err
		}
	}
	return nil
}

// Optimize verifies each metadata entry points to an existing cache
// file and an existing source file; broken entries (and their files)
// are dropped. Returns the count removed.
func (c *Cache) Optimize() (int, error) {
	c.mu.RLock()
	keys := make([]string, 0, len(c.meta.Files))
	entries := make(map[string]metaEntry, len(c.meta.Files))
	for k, v := range c.meta.Files {
		keys = append(keys, k)
		entries[k] = v
	}
	c.mu.RUnlock()

	removed := 0
	for _, k := range keys {
		entry := entries[k]
		_, cacheErr := os.Stat(entry.CachePath)
		_, sourceErr := os.Stat(entry.FilePath)
		if cacheErr != nil || sourceErr != nil {
			if err := c.Remove(k); err != nil {
				return removed, err
			}
			removed++
		}
	}

	c.mu.Lock()
	c.meta.LastCleanup = time.Now().Unix()
	c.mu.Unlock()
	return removed, c.saveMetadata()
}

// Evict deletes entries older than maxAgeDays by last_accessed; if the
// total size still exceeds maxSizeBytes, it evicts least-recently
// accessed entries until under budget. maxSizeBytes <= 0 means
// unbounded (age-only eviction). An empty cache with maxSizeBytes == 0
// evicts nothing further and does not error.
func (c *Cache) Evict(maxAgeDays int, maxSizeBytes int64) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays).Unix()

	c.mu.RLock()
	type ranked struct {
		key   string
		entry metaEntry
	}
	var all []ranked
	for k, v := range c.meta.Files {
		all = append(all, ranked{k, v})
	}
	c.mu.RUnlock()

	evicted := 0
	var kept []ranked
	for _, r := range all {
		if maxAgeDays > 0 && r.entry.LastAccessed < cutoff {
			if err := c.Remove(r.key); err != nil {
				return evicted, err
			}
			evicted++
			continue
		}
		kept = append(kept, r)
	}

	if maxSizeBytes > 0 {
		sort.Slice(kept, func(i, j int) bool { return kept[i].entry.LastAccessed < kept[j].entry.LastAccessed })
		var total int64
		for _, r := range kept {
			total += r.entry.CacheSizeBytes
		}
		i := 0
		for total > maxSizeBytes && i < len(kept) {
			if err := c.Remove(kept[i].key); err != nil {
				return evicted, err
			}
			total -= kept[i].entry.CacheSizeBytes
			evicted++
			i++
		}
	}

	return evicted, nil
}

// Stats reports the invariant-maintaining totals (§4.4): total_files
// equals live entry count, total_size_bytes equals the sum of existing
// cache-file sizes, recomputed lazily here rather than trusted blindly.
type Stats struct {
	TotalFiles     int
	TotalSizeBytes int64
	Created        int64
	LastCleanup    int64
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	c.recomputeTotalSizeLocked()
	defer c.mu.Unlock()
	return Stats{
		TotalFiles:     len(c.meta.Files),
		TotalSizeBytes: c.meta.TotalSizeBytes,
		Created:        c.meta.Created,
		LastCleanup:    c.meta.LastCleanup,
	}
}

func (c *Cache) recomputeTotalSizeLocked() {
	var total int64
	for k, entry := range c.meta.Files {
		info, err := os.Stat(entry.CachePath)
		if err != nil {
			continue
		}
		entry.CacheSizeBytes = info.Size()
		c.meta.Files[k] = entry
		total += info.Size()
	}
	c.meta.TotalSizeBytes = total
	c.meta.TotalFiles = len(c.meta.Files)
}

func (c *Cache) saveMetadata() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.meta, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("cache: marshal metadata: %w", err)
	}
	return writeAtomic(c.metadataPath(), data)
}

// writeAtomic writes data to a temp file in the same directory as path
// then renames it into place, so a crash mid-write never leaves a
// partial file at path (spec §6: "write to *.tmp, fsync, rename").
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// acquire implements the "at most one in-flight extraction per track"
// rule: the first caller for a key becomes the leader and runs fn;
// concurrent callers for the same key wait for the leader's result.
func (c *Cache) acquire(key string) (leader bool, wait func()) {
	c.inflightMu.Lock()
	if wg, ok := c.inflight[key]; ok {
		c.inflightMu.Unlock()
		return false, wg.Wait
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.inflight[key] = wg
	c.inflightMu.Unlock()
	return true, func() {}
}

func (c *Cache) release(key string) {
	c.inflightMu.Lock()
	if wg, ok := c.inflight[key]; ok {
		delete(c.inflight, key)
		c.inflightMu.Unlock()
		wg.Done()
		return
	}
	c.inflightMu.Unlock()
}

// GetOrExtract returns the cached record for trackID, or runs extract()
// exactly once per key even under concurrent callers, caching the
// result before returning it.
func (c *Cache) GetOrExtract(trackID model.TrackId, fileSize, mtimeSeconds int64, decoderProfileID string, extract func() (model.FeatureRecord, error)) (model.FeatureRecord, error) {
	if rec, ok, err := c.Get(trackID, fileSize, mtimeSeconds, decoderProfileID); err == nil && ok {
		return rec, nil
	}

	key := Key(trackID, fileSize, mtimeSeconds, decoderProfileID)
	leader, wait := c.acquire(key)
	if !leader {
		wait()
		rec, ok, err := c.Get(trackID, fileSize, mtimeSeconds, decoderProfileID)
		if err != nil {
			return model.FeatureRecord{}, err
		}
		if ok {
			return rec, nil
		}
		return model.FeatureRecord{}, fmt.Errorf("cache: leader extraction for %s did not produce a record", trackID)
	}
	defer c.release(key)

	if rec, ok, err := c.Get(trackID, fileSize, mtimeSeconds, decoderProfileID); err == nil && ok {
		return rec, nil
	}
	rec, err := extract()
	if err != nil {
		return model.FeatureRecord{}, err
	}
	if err := c.Put(trackID, fileSize, mtimeSeconds, decoderProfileID, rec); err != nil {
		return model.FeatureRecord{}, err
	}
	return rec, nil
}
