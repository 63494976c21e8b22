package cache

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/script-runtime/compiler"
	"github.com/wippyai/script-runtime/dialect"
	"github.com/wippyai/script-runtime/errors"
)

// Config bounds the per-dialect caches. The wasm bound is smaller because
// binary artifacts average far larger than translated script text.
type Config struct {
	Logger             *zap.Logger
	TypeScriptCapacity int
	WasmCapacity       int
}

// DefaultConfig returns the standard capacities: 1000 TypeScript entries and
// 100 wasm entries.
func DefaultConfig() Config {
	return Config{
		TypeScriptCapacity: 1000,
		WasmCapacity:       100,
	}
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Compiles  int64
}

// Store is a content-addressed compilation cache. Entries are keyed by a
// fingerprint of the raw source bytes, never the resource identifier, so two
// URLs serving identical bytes share one artifact. Each cached dialect has
// its own independently bounded LRU space.
type Store struct {
	log    *zap.Logger
	shards map[dialect.Dialect]*shard
	group  singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	compiles  atomic.Int64
}

// NewStore builds a Store with the given capacities. Native script is never
// cached; it needs no translation.
func NewStore(cfg Config) *Store {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	wasmShard := newShard(cfg.WasmCapacity)
	return &Store{
		log: log,
		shards: map[dialect.Dialect]*shard{
			dialect.TypeScript: newShard(cfg.TypeScriptCapacity),
			// Text and binary wasm share one artifact space and bound.
			dialect.WasmText:   wasmShard,
			dialect.WasmBinary: wasmShard,
		},
	}
}

// Fingerprint derives the content key for source bytes.
func Fingerprint(source []byte) uint64 {
	return xxhash.Sum64(source)
}

// LookupOrCompile returns the cached artifact for the source under the given
// dialect, invoking compile on a miss and writing the result through. At most
// one compile runs per fingerprint at a time; concurrent callers for the same
// content share its result. Failed compiles are returned but never cached, so
// a later caller retries.
func (s *Store) LookupOrCompile(d dialect.Dialect, source []byte, compile compiler.Func) (compiler.Artifact, error) {
	sh, ok := s.shards[d]
	if !ok {
		art, err := compile(source)
		if err == nil {
			s.compiles.Add(1)
		}
		return art, err
	}

	fp := Fingerprint(source)
	if art, ok := s.lookup(sh, fp); ok {
		s.hits.Add(1)
		return art, nil
	}
	s.misses.Add(1)

	key := fmt.Sprintf("%s:%016x", d, fp)
	v, err, _ := s.group.Do(key, func() (any, error) {
		// A concurrent caller may have populated the entry while this one
		// waited for the flight.
		if art, ok := s.lookup(sh, fp); ok {
			return art, nil
		}
		art, err := compile(source)
		if err != nil {
			return nil, err
		}
		s.compiles.Add(1)
		if n := sh.insert(fp, art); n > 0 {
			s.evictions.Add(int64(n))
			s.log.Debug("cache eviction",
				zap.Stringer("dialect", d),
				zap.Int("evicted", n))
		}
		return art, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(compiler.Artifact), nil
}

// lookup reads one entry, validating it before use. An unusable entry is
// dropped and reported as a miss.
func (s *Store) lookup(sh *shard, fp uint64) (compiler.Artifact, bool) {
	art, ok := sh.get(fp)
	if !ok {
		return nil, false
	}
	if err := validate(art); err != nil {
		s.log.Warn("dropping corrupt cache entry", zap.Error(err))
		sh.remove(fp)
		return nil, false
	}
	return art, true
}

// validate rejects artifacts that cannot serve a bind.
func validate(art compiler.Artifact) error {
	switch a := art.(type) {
	case compiler.Source:
		return nil
	case compiler.Module:
		if len(a.Binary) == 0 || a.Info == nil {
			return errors.CorruptEntry("module artifact missing binary or export table")
		}
		return nil
	case nil:
		return errors.CorruptEntry("nil artifact")
	}
	return errors.CorruptEntry(fmt.Sprintf("unknown artifact type %T", art))
}

// Clear empties every dialect cache. Counters are preserved.
func (s *Store) Clear() {
	seen := make(map[*shard]bool)
	for _, sh := range s.shards {
		if !seen[sh] {
			sh.clear()
			seen[sh] = true
		}
	}
}

// Len reports the number of live entries in one dialect's cache.
func (s *Store) Len(d dialect.Dialect) int {
	sh, ok := s.shards[d]
	if !ok {
		return 0
	}
	return sh.len()
}

// Snapshot returns current cache statistics.
func (s *Store) Snapshot() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Compiles:  s.compiles.Load(),
	}
}

// entry is one cached artifact with its last-access time.
type entry struct {
	art      compiler.Artifact
	fp       uint64
	lastUsed time.Time
}

// shard is one dialect's bounded LRU space.
type shard struct {
	mu       sync.Mutex
	byFp     map[uint64]*list.Element
	order    *list.List // front is most recently used
	capacity int
}

func newShard(capacity int) *shard {
	if capacity < 1 {
		capacity = 1
	}
	return &shard{
		byFp:     make(map[uint64]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

func (sh *shard) get(fp uint64) (compiler.Artifact, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	el, ok := sh.byFp[fp]
	if !ok {
		return nil, false
	}
	sh.order.MoveToFront(el)
	e := el.Value.(*entry)
	e.lastUsed = time.Now()
	return e.art, true
}

// insert stores one artifact, evicting from the LRU end past capacity.
// It returns the number of evicted entries.
func (sh *shard) insert(fp uint64, art compiler.Artifact) int {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.byFp[fp]; ok {
		sh.order.MoveToFront(el)
		e := el.Value.(*entry)
		e.art = art
		e.lastUsed = time.Now()
		return 0
	}

	el := sh.order.PushFront(&entry{art: art, fp: fp, lastUsed: time.Now()})
	sh.byFp[fp] = el

	evicted := 0
	for sh.order.Len() > sh.capacity {
		oldest := sh.order.Back()
		if oldest == nil {
			break
		}
		sh.order.Remove(oldest)
		delete(sh.byFp, oldest.Value.(*entry).fp)
		evicted++
	}
	return evicted
}

func (sh *shard) remove(fp uint64) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if el, ok := sh.byFp[fp]; ok {
		sh.order.Remove(el)
		delete(sh.byFp, fp)
	}
}

func (sh *shard) clear() {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.byFp = make(map[uint64]*list.Element)
	sh.order.Init()
}

func (sh *shard) len() int {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.order.Len()
}
