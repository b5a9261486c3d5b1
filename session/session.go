package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPrefix namespaces session records in the store.
	DefaultPrefix = "session:"
	// DefaultTTL is the record lifetime after each touch (14 days).
	DefaultTTL = 14 * 24 * time.Hour

	// FieldLastAccessTime is written by Touch on every request.
	FieldLastAccessTime = "last_access_time"
	// FieldLastIPAddress is written by Touch when a remote address is known.
	FieldLastIPAddress = "last_ip_address"

	lastAccessLayout = "2006-01-02 15:04:05.000000"
)

// Config controls how a Session addresses and expires its record.
type Config struct {
	Prefix   string
	TTL      time.Duration
	Observer Observer
	Now      func() time.Time
}

func (c Config) normalize() Config {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Observer == nil {
		c.Observer = noopObserver{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Observer receives backend activity from sessions so an outer layer can
// count it without this package depending on that layer.
type Observer interface {
	FullLoad(key string, fields int, err error)
	FieldFetch(key, field string, found bool, err error)
	DecodeFailure(key, field string, err error)
}

type noopObserver struct{}

func (noopObserver) FullLoad(string, int, error)            {}
func (noopObserver) FieldFetch(string, string, bool, error) {}
func (noopObserver) DecodeFailure(string, string, error)    {}

// Values is the mapping surface handlers program against.
type Values interface {
	Get(ctx context.Context, key string, def any) (any, error)
	Set(key string, value any) error
	Delete(ctx context.Context, key string) (bool, error)
	Has(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
	Len(ctx context.Context) (int, error)
}

var _ Values = (*Session)(nil)

// Session is a lazily loaded, write-buffered view of one hash record.
//
// Reads are served from the local cache, then from single-field fetches,
// and only enumeration pulls the whole record. Writes are applied locally at
// once and queued until Save. A Session belongs to one request and is not
// safe for concurrent use.
type Session struct {
	id    string
	key   string
	store Store
	cfg   Config

	data    map[string]any
	corrupt map[string]*DecodeError
	deleted map[string]struct{}

	loaded  bool
	dirty   bool
	touched bool
	pending []Op
}

// NewID returns a fresh random 128-bit id as 32 hex characters.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// New binds a Session to id without touching the store. An empty id is
// replaced with NewID.
func New(store Store, id string, cfg Config) *Session {
	if id == "" {
		id = NewID()
	}
	cfg = cfg.normalize()

	return &Session{
		id:      id,
		key:     cfg.Prefix + id,
		store:   store,
		cfg:     cfg,
		data:    make(map[string]any),
		corrupt: make(map[string]*DecodeError),
		deleted: make(map[string]struct{}),
	}
}

// Load binds a Session to id and reads the whole record up front. Fields
// that fail to decode are kept aside (see DecodeErrors) and do not fail the load.
//
//	Performance: 1 Redis HGETALL.
func Load(ctx context.Context, store Store, id string, cfg Config) (*Session, error) {
	s := New(store, id, cfg)
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the raw session id, as carried in the cookie.
func (s *Session) ID() string { return s.id }

// Key returns the storage key (prefix + id).
func (s *Session) Key() string { return s.key }

// Loaded reports whether the whole record has been read.
func (s *Session) Loaded() bool { return s.loaded }

// Dirty reports whether mutations are waiting for Save.
func (s *Session) Dirty() bool { return s.dirty }

// Pending returns the number of buffered backend commands.
func (s *Session) Pending() int { return len(s.pending) }

// DecodeErrors returns the fields whose stored bytes could not be decoded.
func (s *Session) DecodeErrors() map[string]error {
	out := make(map[string]error, len(s.corrupt))
	for field, err := range s.corrupt {
		out[field] = err
	}
	return out
}

// Get returns the value for key, or def when the field does not exist.
//
// A field missing from the cache is fetched on its own while the session is
// not fully loaded; that fetch never marks the session loaded. A field whose
// stored bytes are corrupt returns def and a *DecodeError.
func (s *Session) Get(ctx context.Context, key string, def any) (any, error) {
	found, err := s.lookup(ctx, key)
	if err != nil || !found {
		return def, err
	}
	if derr, ok := s.corrupt[key]; ok {
		return def, derr
	}
	return s.data[key], nil
}

// Has reports whether key exists, fetching the single field if needed.
func (s *Session) Has(ctx context.Context, key string) (bool, error) {
	return s.lookup(ctx, key)
}

// Set stores value under key locally and queues the write. Values outside
// the codec's supported set fail with ErrUnsupportedValueType before
// anything is queued.
func (s *Session) Set(key string, value any) error {
	norm, err := Normalize(value)
	if err != nil {
		return err
	}
	return s.put(key, norm)
}

// Delete removes key. When the field exists locally or in the store, the
// HDEL is applied at once as its own batch (the rest of the pipeline stays
// buffered) so that no later single-field fetch can bring the old value
// back. It reports whether anything was deleted.
//
//	Performance: up to 1 Redis HGET + 1 Redis HDEL.
func (s *Session) Delete(ctx context.Context, key string) (bool, error) {
	found, err := s.lookup(ctx, key)
	if err != nil || !found {
		return false, err
	}

	op := Op{Kind: OpDeleteField, Key: s.key, Field: key}
	if err := s.store.Exec(ctx, []Op{op}); err != nil {
		return false, err
	}

	s.dropPendingWrites(key)
	delete(s.data, key)
	delete(s.corrupt, key)
	s.deleted[key] = struct{}{}
	return true, nil
}

// Pop returns the value for key and deletes it, or def if key is absent.
func (s *Session) Pop(ctx context.Context, key string, def any) (any, error) {
	found, err := s.lookup(ctx, key)
	if err != nil || !found {
		return def, err
	}
	if derr, ok := s.corrupt[key]; ok {
		return def, derr
	}

	val := s.data[key]
	if _, err := s.Delete(ctx, key); err != nil {
		return def, err
	}
	return val, nil
}

// Keys returns the sorted field names, loading the whole record first.
func (s *Session) Keys(ctx context.Context) ([]string, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(s.data)), nil
}

// Len returns the number of decodable fields, loading the whole record first.
func (s *Session) Len(ctx context.Context) (int, error) {
	if err := s.load(ctx); err != nil {
		return 0, err
	}
	return len(s.data), nil
}

// Items returns a snapshot of every decodable field, loading the whole record first.
func (s *Session) Items(ctx context.Context) (map[string]any, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return maps.Clone(s.data), nil
}

// Touch records access metadata and queues an expiry refresh to the
// configured TTL. It always marks the session dirty, so the expiry is pushed
// even when nothing else changed. Repeated touches keep a single EXPIRE in
// the pipeline.
func (s *Session) Touch(remoteAddr string) {
	if remoteAddr != "" {
		_ = s.put(FieldLastIPAddress, remoteAddr)
	}
	_ = s.put(FieldLastAccessTime, s.cfg.Now().Format(lastAccessLayout))

	s.touched = true
	s.queueExpire()
	s.dirty = true
}

// Save submits the pipeline as one batch when the session is dirty or force
// is set. The batch is ordered but not atomic. On failure the pipeline is
// kept so a later Save can retry it.
//
//	Performance: 1 round trip.
func (s *Session) Save(ctx context.Context, force bool) error {
	if !s.dirty && !force {
		return nil
	}
	if err := s.store.Exec(ctx, s.pending); err != nil {
		return err
	}
	s.pending = nil
	s.dirty = false
	return nil
}

// Clear drops all local state and pending writes, then deletes the record
// immediately. A touched session still expires: the next write re-queues
// the expiry behind it.
func (s *Session) Clear(ctx context.Context) error {
	s.data = make(map[string]any)
	s.corrupt = make(map[string]*DecodeError)
	s.deleted = make(map[string]struct{})
	s.pending = nil
	s.dirty = false
	s.loaded = false

	if err := s.store.Delete(ctx, s.key); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

// Copy loads the whole record and returns an unsaved Session under id (or a
// fresh id when empty) holding the same values. The expiry is not copied.
func (s *Session) Copy(ctx context.Context, id string) (*Session, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	c := New(s.store, id, s.cfg)
	for _, field := range slices.Sorted(maps.Keys(s.data)) {
		clone, err := Normalize(s.data[field])
		if err != nil {
			return nil, err
		}
		if err := c.put(field, clone); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// View loads the whole record and renders it as indented JSON with sorted
// keys. Values JSON cannot carry (NaN or infinite floats) and stored fields
// that fail to decode both fail with ErrNotRepresentable; byte strings are
// rendered as base64.
func (s *Session) View(ctx context.Context) ([]byte, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	if len(s.corrupt) > 0 {
		field := slices.Sorted(maps.Keys(s.corrupt))[0]
		return nil, fmt.Errorf("%w: %w", ErrNotRepresentable, s.corrupt[field])
	}

	out, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRepresentable, err)
	}
	return out, nil
}

func (s *Session) String() string {
	return fmt.Sprintf("<%s, %v>", s.key, s.data)
}

func (s *Session) put(key string, norm any) error {
	raw, err := encodeNormalized(norm)
	if err != nil {
		return err
	}

	s.pending = append(s.pending, Op{Kind: OpSetField, Key: s.key, Field: key, Value: raw})
	if s.touched {
		s.queueExpire()
	}
	s.data[key] = norm
	delete(s.corrupt, key)
	delete(s.deleted, key)
	s.dirty = true
	return nil
}

// lookup reports whether key exists, consulting the store for a single
// field only when the local state cannot answer.
func (s *Session) lookup(ctx context.Context, key string) (bool, error) {
	if _, ok := s.data[key]; ok {
		return true, nil
	}
	if _, ok := s.corrupt[key]; ok {
		return true, nil
	}
	if _, ok := s.deleted[key]; ok || s.loaded {
		return false, nil
	}
	return s.fetch(ctx, key)
}

func (s *Session) fetch(ctx context.Context, field string) (bool, error) {
	raw, found, err := s.store.GetField(ctx, s.key, field)
	s.cfg.Observer.FieldFetch(s.key, field, found, err)
	if err != nil || !found {
		return false, err
	}

	val, err := Decode(raw)
	if err != nil {
		s.markCorrupt(field, err)
		return true, nil
	}
	s.data[field] = val
	return true, nil
}

// load merges the whole record into the cache. Cached and locally deleted
// fields win over what the store returns.
func (s *Session) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	raw, err := s.store.GetAll(ctx, s.key)
	s.cfg.Observer.FullLoad(s.key, len(raw), err)
	if err != nil {
		return err
	}

	for field, b := range raw {
		if _, ok := s.data[field]; ok {
			continue
		}
		if _, ok := s.deleted[field]; ok {
			continue
		}
		val, err := Decode(b)
		if err != nil {
			s.markCorrupt(field, err)
			continue
		}
		delete(s.corrupt, field)
		s.data[field] = val
	}

	s.loaded = true
	return nil
}

// queueExpire keeps exactly one EXPIRE in the pipeline, after every write,
// so a batch that creates the record also gives it an expiry.
func (s *Session) queueExpire() {
	s.pending = slices.DeleteFunc(s.pending, func(op Op) bool {
		return op.Kind == OpExpire
	})
	s.pending = append(s.pending, Op{Kind: OpExpire, Key: s.key, TTL: s.cfg.TTL})
}

func (s *Session) markCorrupt(field string, err error) {
	derr := &DecodeError{Field: field, Err: err}
	s.corrupt[field] = derr
	s.cfg.Observer.DecodeFailure(s.key, field, derr)
}

// dropPendingWrites removes queued HSETs for field so a Save cannot
// re-create a field that was just deleted.
func (s *Session) dropPendingWrites(field string) {
	s.pending = slices.DeleteFunc(s.pending, func(op Op) bool {
		return op.Kind == OpSetField && op.Field == field
	})
}
