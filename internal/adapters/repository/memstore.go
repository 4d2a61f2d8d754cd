package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

// MemStore is an in-process Store. Sorted sets are treaps, hashes are maps.
// A single mutex serializes writers, which makes every Tx atomic and isolated.
type MemStore struct {
	mu      sync.RWMutex
	data    map[string]*value
	cursors map[uint64]string
	nextCur uint64
	closed  bool

	maxCursors int
}

type value struct {
	zset *treap
	hash map[string]string
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		data:       make(map[string]*value),
		cursors:    make(map[uint64]string),
		maxCursors: defaultMaxCursors,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreOp(op, err, float64(time.Since(start).Microseconds())/1000)
}

// zsetLocked returns the sorted set at key, nil when the key does not exist.
func (s *MemStore) zsetLocked(key string) (*treap, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	if v.zset == nil {
		return nil, fmt.Errorf("%w: %s", ErrWrongType, key)
	}
	return v.zset, nil
}

func (s *MemStore) hashLocked(key string) (map[string]string, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	if v.hash == nil {
		return nil, fmt.Errorf("%w: %s", ErrWrongType, key)
	}
	return v.hash, nil
}

func (s *MemStore) readLock() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	return nil
}

func (s *MemStore) writeLock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// ZScore implements Store.
func (s *MemStore) ZScore(_ context.Context, key, member string) (score float64, ok bool, err error) {
	defer func(start time.Time) { observe("zscore", start, err) }(time.Now())
	if err = s.readLock(); err != nil {
		return 0, false, err
	}
	defer s.mu.RUnlock()
	z, err := s.zsetLocked(key)
	if err != nil || z == nil {
		return 0, false, err
	}
	score, ok = z.score(member)
	return score, ok, nil
}

// ZRevRank implements Store.
func (s *MemStore) ZRevRank(_ context.Context, key, member string) (rank int64, ok bool, err error) {
	defer func(start time.Time) { observe("zrevrank", start, err) }(time.Now())
	if err = s.readLock(); err != nil {
		return 0, false, err
	}
	defer s.mu.RUnlock()
	z, err := s.zsetLocked(key)
	if err != nil || z == nil {
		return 0, false, err
	}
	r := z.rank(member)
	if r < 0 {
		return 0, false, nil
	}
	return int64(r), true, nil
}

// ZRevRangeWithScores implements Store.
func (s *MemStore) ZRevRangeWithScores(_ context.Context, key string, start, stop int64) (out []Member, err error) {
	defer func(t time.Time) { observe("zrevrange", t, err) }(time.Now())
	if err = s.readLock(); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	z, err := s.zsetLocked(key)
	if err != nil {
		return nil, err
	}
	if z == nil {
		return []Member{}, nil
	}
	return z.rangeByIndex(start, stop), nil
}

// ZCard implements Store.
func (s *MemStore) ZCard(_ context.Context, key string) (n int64, err error) {
	defer func(start time.Time) { observe("zcard", start, err) }(time.Now())
	if err = s.readLock(); err != nil {
		return 0, err
	}
	defer s.mu.RUnlock()
	z, err := s.zsetLocked(key)
	if err != nil || z == nil {
		return 0, err
	}
	return int64(z.len()), nil
}

// HGet implements Store.
func (s *MemStore) HGet(_ context.Context, key, field string) (val string, ok bool, err error) {
	defer func(start time.Time) { observe("hget", start, err) }(time.Now())
	if err = s.readLock(); err != nil {
		return "", false, err
	}
	defer s.mu.RUnlock()
	h, err := s.hashLocked(key)
	if err != nil || h == nil {
		return "", false, err
	}
	val, ok = h[field]
	return val, ok, nil
}

// HMGet implements Store.
func (s *MemStore) HMGet(_ context.Context, key string, fields ...string) (out map[string]string, err error) {
	defer func(start time.Time) { observe("hmget", start, err) }(time.Now())
	if err = s.readLock(); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	h, err := s.hashLocked(key)
	if err != nil {
		return nil, err
	}
	out = make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := h[f]; ok {
			out[f] = v
		}
	}
	return out, nil
}

// HSet implements Store.
func (s *MemStore) HSet(ctx context.Context, key, field, value string) error {
	return s.Tx(ctx, func(b Batch) { b.HSet(key, field, value) })
}

// HIncrBy implements Store.
func (s *MemStore) HIncrBy(_ context.Context, key, field string, incr int64) (n int64, err error) {
	defer func(start time.Time) { observe("hincrby", start, err) }(time.Now())
	if err = s.writeLock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	cmds := []memCmd{{op: opHIncrBy, key: key, field: field, incr: incr}}
	if err = s.validateLocked(cmds); err != nil {
		return 0, err
	}
	s.applyLocked(cmds)
	return strconv.ParseInt(s.data[key].hash[field], 10, 64)
}

// Tx implements Store. Commands are validated against the current state
// before any of them is applied, so a failing batch leaves no trace.
func (s *MemStore) Tx(_ context.Context, fn func(b Batch)) (err error) {
	b := &memBatch{}
	fn(b)
	if len(b.cmds) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("tx", start, err) }(time.Now())
	if err = s.writeLock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if err = s.validateLocked(b.cmds); err != nil {
		return err
	}
	s.applyLocked(b.cmds)
	metrics.RecordStoreTx(len(b.cmds))
	return nil
}

// Scan implements Store. Keys are visited in lexical order and the cursor
// remembers the last key returned, so keys deleted between pages are never
// the reason another key is skipped.
func (s *MemStore) Scan(_ context.Context, cursor uint64, prefix string, count int64) (keys []string, next uint64, err error) {
	defer func(start time.Time) { observe("scan", start, err) }(time.Now())
	if err = s.writeLock(); err != nil {
		return nil, 0, err
	}
	defer s.mu.Unlock()

	after := ""
	if cursor != 0 {
		var ok bool
		if after, ok = s.cursors[cursor]; !ok {
			return nil, 0, fmt.Errorf("%w: %d", ErrInvalidCursor, cursor)
		}
		delete(s.cursors, cursor)
	}

	matched := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) && (cursor == 0 || k > after) {
			matched = append(matched, k)
		}
	}
	sort.Strings(matched)

	if count <= 0 {
		count = 10
	}
	if int64(len(matched)) <= count {
		return matched, 0, nil
	}
	page := matched[:count]
	if len(s.cursors) >= s.maxCursors {
		clear(s.cursors)
	}
	s.nextCur++
	s.cursors[s.nextCur] = page[len(page)-1]
	return page, s.nextCur, nil
}

// Del implements Store.
func (s *MemStore) Del(_ context.Context, keys ...string) (n int64, err error) {
	defer func(start time.Time) { observe("del", start, err) }(time.Now())
	if err = s.writeLock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

// Ping implements Store.
func (s *MemStore) Ping(context.Context) error {
	if err := s.readLock(); err != nil {
		return err
	}
	s.mu.RUnlock()
	return nil
}

// Close releases the store; later calls fail with ErrClosed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

// Len returns the number of keys held.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

type cmdOp uint8

const (
	opZAdd cmdOp = iota
	opZIncrBy
	opZRem
	opHSet
	opHDel
	opHIncrBy
	opDel
)

type memCmd struct {
	op    cmdOp
	key   string
	field string // member for sorted-set commands
	value string
	score float64
	incr  int64
	args  []string
}

type memBatch struct {
	cmds []memCmd
}

func (b *memBatch) ZAdd(key, member string, score float64) {
	b.cmds = append(b.cmds, memCmd{op: opZAdd, key: key, field: member, score: score})
}

func (b *memBatch) ZIncrBy(key, member string, delta float64) {
	b.cmds = append(b.cmds, memCmd{op: opZIncrBy, key: key, field: member, score: delta})
}

func (b *memBatch) ZRem(key string, members ...string) {
	b.cmds = append(b.cmds, memCmd{op: opZRem, key: key, args: members})
}

func (b *memBatch) HSet(key, field, value string) {
	b.cmds = append(b.cmds, memCmd{op: opHSet, key: key, field: field, value: value})
}

func (b *memBatch) HDel(key string, fields ...string) {
	b.cmds = append(b.cmds, memCmd{op: opHDel, key: key, args: fields})
}

func (b *memBatch) HIncrBy(key, field string, incr int64) {
	b.cmds = append(b.cmds, memCmd{op: opHIncrBy, key: key, field: field, incr: incr})
}

func (b *memBatch) Del(keys ...string) {
	b.cmds = append(b.cmds, memCmd{op: opDel, args: keys})
}

func (b *memBatch) Len() int { return len(b.cmds) }

type kind uint8

const (
	kindNone kind = iota
	kindZSet
	kindHash
)

// pending tracks what a batch has done so far without touching s.data.
type pending struct {
	kind    kind
	cleared bool
	fields  map[string]*string
}

// validateLocked dry-runs cmds and reports the first command that would fail.
func (s *MemStore) validateLocked(cmds []memCmd) error {
	over := make(map[string]*pending)
	state := func(key string) *pending {
		if p, ok := over[key]; ok {
			return p
		}
		p := &pending{fields: make(map[string]*string)}
		if v, ok := s.data[key]; ok {
			if v.zset != nil {
				p.kind = kindZSet
			} else {
				p.kind = kindHash
			}
		}
		over[key] = p
		return p
	}
	hashValue := func(key string, p *pending, field string) (string, bool) {
		if v, ok := p.fields[field]; ok {
			if v == nil {
				return "", false
			}
			return *v, true
		}
		if p.cleared {
			return "", false
		}
		if v, ok := s.data[key]; ok && v.hash != nil {
			val, ok := v.hash[field]
			return val, ok
		}
		return "", false
	}

	for _, c := range cmds {
		switch c.op {
		case opDel:
			for _, k := range c.args {
				over[k] = &pending{kind: kindNone, cleared: true, fields: make(map[string]*string)}
			}
		case opZAdd, opZIncrBy, opZRem:
			p := state(c.key)
			if p.kind == kindHash {
				return fmt.Errorf("%w: %s", ErrWrongType, c.key)
			}
			if c.op != opZRem && math.IsNaN(c.score) {
				return fmt.Errorf("%w: NaN for %s", ErrInvalidScore, c.key)
			}
			if c.op != opZRem {
				p.kind = kindZSet
			}
		case opHSet, opHDel, opHIncrBy:
			p := state(c.key)
			if p.kind == kindZSet {
				return fmt.Errorf("%w: %s", ErrWrongType, c.key)
			}
			switch c.op {
			case opHSet:
				v := c.value
				p.fields[c.field] = &v
				p.kind = kindHash
			case opHDel:
				for _, f := range c.args {
					p.fields[f] = nil
				}
			case opHIncrBy:
				cur := int64(0)
				if raw, ok := hashValue(c.key, p, c.field); ok {
					n, err := strconv.ParseInt(raw, 10, 64)
					if err != nil {
						return fmt.Errorf("%w: %s %s", ErrNotInteger, c.key, c.field)
					}
					cur = n
				}
				v := strconv.FormatInt(cur+c.incr, 10)
				p.fields[c.field] = &v
				p.kind = kindHash
			}
		}
	}
	return nil
}

// applyLocked executes cmds that validateLocked accepted.
func (s *MemStore) applyLocked(cmds []memCmd) {
	zset := func(key string) *treap {
		v, ok := s.data[key]
		if !ok {
			v = &value{zset: newTreap()}
			s.data[key] = v
		}
		return v.zset
	}
	hash := func(key string) map[string]string {
		v, ok := s.data[key]
		if !ok {
			v = &value{hash: make(map[string]string)}
			s.data[key] = v
		}
		return v.hash
	}

	for _, c := range cmds {
		switch c.op {
		case opZAdd:
			zset(c.key).set(c.field, c.score)
		case opZIncrBy:
			z := zset(c.key)
			cur, _ := z.score(c.field)
			z.set(c.field, cur+c.score)
		case opZRem:
			if v, ok := s.data[c.key]; ok {
				for _, m := range c.args {
					v.zset.remove(m)
				}
				if v.zset.len() == 0 {
					delete(s.data, c.key)
				}
			}
		case opHSet:
			hash(c.key)[c.field] = c.value
		case opHDel:
			if v, ok := s.data[c.key]; ok {
				for _, f := range c.args {
					delete(v.hash, f)
				}
				if len(v.hash) == 0 {
					delete(s.data, c.key)
				}
			}
		case opHIncrBy:
			h := hash(c.key)
			cur, _ := strconv.ParseInt(h[c.field], 10, 64)
			h[c.field] = strconv.FormatInt(cur+c.incr, 10)
		case opDel:
			for _, k := range c.args {
				delete(s.data, k)
			}
		}
	}
}
