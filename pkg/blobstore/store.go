// Package blobstore provides a fingerprint-keyed, LZ4-compressed, durable
// key/value store with TTL expiry and total-size-bounded eviction. It is the
// persistence layer under the call-graph cache; it knows nothing about call
// graphs, only opaque byte payloads.
package blobstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/observability"
)

const (
	defaultShardWidth  = 2
	defaultTTL         = 30 * 24 * time.Hour
	defaultMaxTotal    = 100 * 1024 * 1024
	tempSuffix         = ".tmp"
	blobSuffix         = ".blob"
	headerMagic        = uint32(0x54494253) // "TIBS"
	maintenanceSlack   = 1.10               // tolerate 10% overshoot before evicting further
	evictBatchFraction = 4                  // not referenced; Maintenance evicts one file at a time
)

// ErrCorrupt is returned internally (never to callers of Get, which maps it
// to a miss) when a blob fails to decode.
var ErrCorrupt = errors.New("blobstore: corrupt entry")

// header is the fixed-size plaintext prefix of every blob file.
type header struct {
	Magic             uint32
	CreatedAtUnixNano int64
	TTLNanos          int64
	UncompressedSize  int64
}

const headerSize = 4 + 8 + 8 + 8

// Store is a fingerprint-keyed compressed blob store rooted at a directory.
type Store struct {
	root       string
	shardWidth int
	ttlDefault time.Duration
	maxTotal   int64
	logger     *slog.Logger
	metrics    *observability.CacheMetrics

	mu    sync.Mutex // guards directory maintenance; file I/O itself is independent per key
	stats Statistics
}

// Option configures a Store.
type Option func(*Store)

// WithShardWidth sets the number of leading hex characters of a key used to
// pick its shard directory. Must be between 1 and 8; defaults to 2.
func WithShardWidth(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shardWidth = n
		}
	}
}

// WithTTLDefault sets the TTL applied when Set is called with ttl <= 0.
func WithTTLDefault(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttlDefault = d
		}
	}
}

// WithMaxTotalSize sets the soft total-compressed-size bound enforced by
// Maintenance.
func WithMaxTotalSize(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTotal = n
		}
	}
}

// WithLogger sets the logger used for corruption and maintenance events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics wires OTel cache-tier instruments. Nil is safe: every
// CacheMetrics method is a no-op on a nil receiver.
func WithMetrics(metrics *observability.CacheMetrics) Option {
	return func(s *Store) {
		s.metrics = metrics
	}
}

// New creates a Store rooted at dir, creating it if necessary.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		root:       dir,
		shardWidth: defaultShardWidth,
		ttlDefault: defaultTTL,
		maxTotal:   defaultMaxTotal,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}

	return s, nil
}

// shardDir returns the shard directory a key maps to.
func (s *Store) shardDir(key string) string {
	width := s.shardWidth
	if width > len(key) {
		width = len(key)
	}

	return filepath.Join(s.root, key[:width])
}

// path returns the blob file path for a key.
func (s *Store) path(key string) string {
	return filepath.Join(s.shardDir(key), key+blobSuffix)
}

// Get reads and decompresses the entry for key. It returns (nil, false) on
// a cache miss, an expired entry, or a corrupt entry — all three are
// indistinguishable to callers by design (§7 propagation policy: I/O and
// corruption never surface as errors from Get).
func (s *Store) Get(key string) ([]byte, bool) {
	start := time.Now()

	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		s.stats.misses.Add(1)
		s.recordLookup(0, 1, time.Since(start))

		return nil, false
	}

	value, decodeErr := s.decode(raw)
	if decodeErr != nil {
		s.logger.Warn("blobstore: corrupt entry removed", "key", key, "error", decodeErr)
		s.stats.corruption.Add(1)
		os.Remove(s.path(key))
		s.stats.entries.Add(-1)
		s.recordLookup(0, 1, time.Since(start))

		return nil, false
	}

	if value == nil {
		// Expired: silently remove and report a miss.
		os.Remove(s.path(key))
		s.stats.misses.Add(1)
		s.stats.entries.Add(-1)
		s.recordLookup(0, 1, time.Since(start))

		return nil, false
	}

	// Touch mtime so Maintenance's LRU-ish eviction has a recency signal.
	now := time.Now()
	os.Chtimes(s.path(key), now, now)

	s.stats.hits.Add(1)
	s.recordLookup(1, 0, time.Since(start))

	return value, true
}

// recordLookup forwards one Get outcome to the wired OTel metrics, if any.
func (s *Store) recordLookup(hits, misses int64, duration time.Duration) {
	s.metrics.RecordTier(context.Background(), observability.CacheTierStats{
		Tier:     "blobstore",
		Hits:     hits,
		Misses:   misses,
		Duration: duration,
	})
}

// decode parses a blob's header and, if not expired, decompresses its body.
// A nil, nil return means the entry decoded cleanly but has expired.
func (s *Store) decode(raw []byte) ([]byte, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}

	r := bytes.NewReader(raw)

	var h header

	err := binary.Read(r, binary.LittleEndian, &h)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if h.Magic != headerMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	if h.TTLNanos > 0 {
		expiry := time.Unix(0, h.CreatedAtUnixNano).Add(time.Duration(h.TTLNanos))
		if time.Now().After(expiry) {
			return nil, nil
		}
	}

	uncompressed := make([]byte, h.UncompressedSize)

	lzReader := lz4.NewReader(r)

	n, readErr := io.ReadFull(lzReader, uncompressed)
	if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, readErr)
	}

	return uncompressed[:n], nil
}

// Set compresses and atomically writes value under key. ttl <= 0 uses the
// store's default TTL.
func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttlDefault
	}

	dir := s.shardDir(key)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("blobstore: create shard: %w", err)
	}

	var body bytes.Buffer

	lzWriter := lz4.NewWriter(&body)

	applyErr := lzWriter.Apply(lz4.CompressionLevelOption(lz4.Level9))
	if applyErr != nil {
		return fmt.Errorf("blobstore: configure compression: %w", applyErr)
	}

	_, writeErr := lzWriter.Write(value)
	if writeErr != nil {
		return fmt.Errorf("blobstore: compress: %w", writeErr)
	}

	closeErr := lzWriter.Close()
	if closeErr != nil {
		return fmt.Errorf("blobstore: finalize compression: %w", closeErr)
	}

	h := header{
		Magic:             headerMagic,
		CreatedAtUnixNano: time.Now().UnixNano(),
		TTLNanos:          int64(ttl),
		UncompressedSize:  int64(len(value)),
	}

	var out bytes.Buffer

	err = binary.Write(&out, binary.LittleEndian, h)
	if err != nil {
		return fmt.Errorf("blobstore: write header: %w", err)
	}

	out.Write(body.Bytes())

	path := s.path(key)
	tempPath := path + tempSuffix

	_, statErr := os.Stat(path)
	isNew := statErr != nil

	err = os.WriteFile(tempPath, out.Bytes(), 0o644)
	if err != nil {
		return fmt.Errorf("blobstore: write temp: %w", err)
	}

	err = os.Rename(tempPath, path)
	if err != nil {
		os.Remove(tempPath)

		return fmt.Errorf("blobstore: rename: %w", err)
	}

	s.stats.stores.Add(1)
	s.stats.totalCompressedSize.Add(int64(out.Len()))
	s.stats.totalUncompressedSize.Add(int64(len(value)))

	if isNew {
		s.stats.entries.Add(1)
	}

	return nil
}

// Remove deletes the entry for key, reporting whether one existed.
func (s *Store) Remove(key string) bool {
	err := os.Remove(s.path(key))
	if err != nil {
		return false
	}

	s.stats.entries.Add(-1)

	return true
}

// Clear removes every entry under the store root.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("blobstore: read root: %w", err)
	}

	for _, e := range entries {
		removeErr := os.RemoveAll(filepath.Join(s.root, e.Name()))
		if removeErr != nil {
			return fmt.Errorf("blobstore: clear shard %s: %w", e.Name(), removeErr)
		}
	}

	s.stats.totalCompressedSize.Store(0)
	s.stats.totalUncompressedSize.Store(0)
	s.stats.entries.Store(0)

	return nil
}

// blobFile describes a discovered blob for maintenance purposes.
type blobFile struct {
	path    string
	size    int64
	modTime time.Time
}

// Maintenance sweeps expired entries and, if the store exceeds its
// maxTotal bound by more than 10%, evicts least-recently-accessed entries
// (by file mtime) until back under the bound.
func (s *Store) Maintenance() (MaintenanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result MaintenanceResult

	var live []blobFile

	var totalSize int64

	walkErr := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Ext(path) != blobSuffix {
			return nil //nolint:nilerr // best-effort walk; unreadable entries are skipped, not fatal
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}

		value, decodeErr := s.decode(raw)
		if decodeErr != nil {
			os.Remove(path)
			result.CorruptRemoved++
			s.stats.corruption.Add(1)

			return nil
		}

		if value == nil {
			os.Remove(path)
			result.ExpiredRemoved++

			return nil
		}

		live = append(live, blobFile{path: path, size: info.Size(), modTime: info.ModTime()})
		totalSize += info.Size()

		return nil
	})
	if walkErr != nil {
		return result, fmt.Errorf("blobstore: walk: %w", walkErr)
	}

	if s.maxTotal > 0 && totalSize > int64(float64(s.maxTotal)*maintenanceSlack) {
		sort.Slice(live, func(i, j int) bool { return live[i].modTime.Before(live[j].modTime) })

		for i, f := range live {
			if totalSize <= s.maxTotal {
				break
			}

			if removeErr := os.Remove(f.path); removeErr == nil {
				totalSize -= f.size
				result.SizeEvicted++
				s.stats.evictions.Add(1)
				live[i].path = ""
			}
		}
	}

	remaining := 0

	for _, f := range live {
		if f.path != "" {
			remaining++
		}
	}

	s.stats.totalCompressedSize.Store(totalSize)
	s.stats.entries.Store(int64(remaining))
	result.LastMaintenance = time.Now()

	s.metrics.RecordTier(context.Background(), observability.CacheTierStats{
		Tier:      "blobstore",
		Evictions: int64(result.SizeEvicted + result.ExpiredRemoved + result.CorruptRemoved),
	})

	return result, nil
}

// MaintenanceResult summarizes a single Maintenance pass.
type MaintenanceResult struct {
	ExpiredRemoved  int
	CorruptRemoved  int
	SizeEvicted     int
	LastMaintenance time.Time
}
