package session

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(rdb), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

type countingObserver struct {
	mu         sync.Mutex
	fullLoads  int
	fetches    int
	decodeErrs int
}

func (o *countingObserver) FullLoad(string, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fullLoads++
}

func (o *countingObserver) FieldFetch(string, string, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches++
}

func (o *countingObserver) DecodeFailure(string, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decodeErrs++
}

// recordingStore counts Exec calls and forwards to an inner store.
type recordingStore struct {
	Store
	execs [][]Op
}

func (r *recordingStore) Exec(ctx context.Context, ops []Op) error {
	r.execs = append(r.execs, append([]Op(nil), ops...))
	return r.Store.Exec(ctx, ops)
}

func TestSessionIDAndKey(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	s := New(store, "12345678", Config{})
	if s.ID() != "12345678" {
		t.Fatalf("unexpected id %q", s.ID())
	}
	if s.Key() != "session:12345678" {
		t.Fatalf("unexpected key %q", s.Key())
	}

	minted := New(store, "", Config{})
	if len(minted.ID()) != 32 {
		t.Fatalf("expected 32 hex chars for minted id, got %q", minted.ID())
	}
}

func TestSetGetReadsOwnWritesBeforeSave(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "rw", Config{})
	values := map[string]any{
		"str":  "bar",
		"int":  int64(7),
		"flt":  1.5,
		"bool": false,
		"list": []any{"a", int64(2)},
		"map":  map[string]any{"k": "v"},
	}
	for k, v := range values {
		if err := s.Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	for k, want := range values {
		got, err := s.Get(ctx, k, nil)
		if err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("get %s: got %#v want %#v", k, got, want)
		}
	}

	fresh := New(store, "rw", Config{})
	if got, _ := fresh.Get(ctx, "str", "missing"); got != "missing" {
		t.Fatalf("unsaved write leaked to the store: %#v", got)
	}
}

func TestSaveThenReloadRoundTrip(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "abc123", Config{})
	if err := s.Set("foo", "bar"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if s.Dirty() || s.Pending() != 0 {
		t.Fatalf("save should clear dirty state, dirty=%v pending=%d", s.Dirty(), s.Pending())
	}

	loaded, err := Load(ctx, store, "abc123", Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := loaded.Get(ctx, "foo", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "bar" {
		t.Fatalf("expected bar, got %#v", got)
	}
}

func TestSaveBasicTypesKeepTheirShape(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "types", Config{})
	if err := s.Set("n", 123); err != nil {
		t.Fatalf("set n: %v", err)
	}
	if err := s.Set("m", map[string]any{"x": 1}); err != nil {
		t.Fatalf("set m: %v", err)
	}
	if err := s.Set("list", []string{"a", "b"}); err != nil {
		t.Fatalf("set list: %v", err)
	}
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(ctx, store, "types", Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	n, _ := loaded.Get(ctx, "n", nil)
	if n != int64(123) {
		t.Fatalf("expected int64(123), got %#v", n)
	}
	m, _ := loaded.Get(ctx, "m", nil)
	if !reflect.DeepEqual(m, map[string]any{"x": int64(1)}) {
		t.Fatalf("unexpected mapping %#v", m)
	}
	list, _ := loaded.Get(ctx, "list", nil)
	if !reflect.DeepEqual(list, []any{"a", "b"}) {
		t.Fatalf("unexpected sequence %#v", list)
	}
}

func TestUnsavedSessionDoesNotPersist(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "dropped", Config{})
	if err := s.Set("foo", "bar"); err != nil {
		t.Fatalf("set: %v", err)
	}

	loaded, err := Load(ctx, store, "dropped", Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok, _ := loaded.Has(ctx, "foo"); ok {
		t.Fatal("field must not exist before save")
	}
}

func TestSetUnsupportedValueBuffersNothing(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	s := New(store, "bad-value", Config{})
	err := s.Set("handler", func() {})
	if !errors.Is(err, ErrUnsupportedValueType) {
		t.Fatalf("expected ErrUnsupportedValueType, got %v", err)
	}
	if s.Pending() != 0 || s.Dirty() {
		t.Fatalf("rejected set must not buffer, pending=%d dirty=%v", s.Pending(), s.Dirty())
	}
}

func TestDeleteThenReloadReturnsDefault(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	seed := New(store, "del", Config{})
	_ = seed.Set("foo", "bar")
	if err := seed.Save(ctx, false); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	s := New(store, "del", Config{})
	deleted, err := s.Delete(ctx, "foo")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report the field as removed")
	}
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := New(store, "del", Config{})
	got, err := fresh.Get(ctx, "foo", "default")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "default" {
		t.Fatalf("deleted field resurrected: %#v", got)
	}
}

func TestDeleteAppliesImmediatelyAndKeepsRestBuffered(t *testing.T) {
	inner, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	seed := New(inner, "immediate", Config{})
	_ = seed.Set("foo", "bar")
	if err := seed.Save(ctx, false); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	store := &recordingStore{Store: inner}
	s := New(store, "immediate", Config{})
	_ = s.Set("other", "value")

	if _, err := s.Delete(ctx, "foo"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.execs) != 1 || len(store.execs[0]) != 1 || store.execs[0][0].Kind != OpDeleteField {
		t.Fatalf("expected a single one-op HDEL batch, got %+v", store.execs)
	}
	if s.Pending() != 1 {
		t.Fatalf("unrelated writes must stay buffered, pending=%d", s.Pending())
	}

	if _, found, _ := inner.GetField(ctx, s.Key(), "foo"); found {
		t.Fatal("field still present in store after delete")
	}
	if got, _ := s.Get(ctx, "foo", "gone"); got != "gone" {
		t.Fatalf("deleted field came back through a field fetch: %#v", got)
	}
}

func TestDeleteDropsPendingWriteOfSameField(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "set-then-del", Config{})
	_ = s.Set("foo", "bar")
	if _, err := s.Delete(ctx, "foo"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Save(ctx, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := New(store, "set-then-del", Config{})
	if ok, _ := fresh.Has(ctx, "foo"); ok {
		t.Fatal("queued write re-created a deleted field")
	}
}

func TestDeleteMissingFieldIsNoop(t *testing.T) {
	inner, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	store := &recordingStore{Store: inner}
	s := New(store, "nothing", Config{})
	deleted, err := s.Delete(ctx, "nope")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted || len(store.execs) != 0 {
		t.Fatalf("expected no backend write for a missing field, deleted=%v execs=%d", deleted, len(store.execs))
	}
}

func TestPop(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "pop", Config{})
	_ = s.Set("flash", "saved!")

	got, err := s.Pop(ctx, "flash", nil)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got != "saved!" {
		t.Fatalf("unexpected popped value %#v", got)
	}
	if got, _ := s.Pop(ctx, "flash", "none"); got != "none" {
		t.Fatalf("second pop should return default, got %#v", got)
	}
}

func TestClearThenReloadIsEmpty(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "clear", Config{})
	_ = s.Set("a", 1)
	_ = s.Set("b", 2)
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = s.Set("c", 3)

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if s.Pending() != 0 || s.Dirty() {
		t.Fatalf("clear must reset the pipeline, pending=%d dirty=%v", s.Pending(), s.Dirty())
	}
	if mr.Exists(s.Key()) {
		t.Fatal("record still exists after clear")
	}

	loaded, err := Load(ctx, store, "clear", Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	n, err := loaded.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty mapping after clear, got %d fields", n)
	}
}

func TestTouchRefreshesTTLWithoutAccumulating(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	fixed := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	cfg := Config{TTL: time.Hour, Now: func() time.Time { return fixed }}

	s := New(store, "touch", cfg)
	s.Touch("10.0.0.1")
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL(s.Key()); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}

	mr.FastForward(30 * time.Minute)

	s.Touch("")
	s.Touch("")
	expires := 0
	for _, op := range s.pending {
		if op.Kind == OpExpire {
			expires++
		}
	}
	if expires != 1 {
		t.Fatalf("expected a single queued expire, got %d", expires)
	}
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	ttl, err := store.TTL(ctx, s.Key())
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl != time.Hour {
		t.Fatalf("ttl must be refreshed to 1h, got %v", ttl)
	}

	fresh := New(store, "touch", cfg)
	ip, _ := fresh.Get(ctx, FieldLastIPAddress, nil)
	if ip != "10.0.0.1" {
		t.Fatalf("unexpected last ip %#v", ip)
	}
	at, _ := fresh.Get(ctx, FieldLastAccessTime, nil)
	if at != "2026-10-19 08:30:00.000000" {
		t.Fatalf("unexpected last access time %#v", at)
	}
}

func TestRedisStoreTTLMissingKey(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	ttl, err := store.TTL(context.Background(), "session:nobody")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl >= 0 {
		t.Fatalf("expected a negative ttl for a missing key, got %v", ttl)
	}
}

func TestWriteAfterClearKeepsExpiry(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "logout", Config{TTL: time.Hour})
	_ = s.Set("user", "alice")
	s.Touch("10.0.0.1")
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	s.Touch("10.0.0.1")
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	_ = s.Set("flash", "bye")
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	if !mr.Exists(s.Key()) {
		t.Fatal("record written after clear is missing")
	}
	if ttl := mr.TTL(s.Key()); ttl != time.Hour {
		t.Fatalf("record written after clear must expire in 1h, got %v", ttl)
	}
	if got := mr.HGet(s.Key(), "user"); got != "" {
		t.Fatalf("cleared field came back: %q", got)
	}
}

func TestExpireStaysBehindLaterWrites(t *testing.T) {
	s := New(nil, "order", Config{TTL: time.Hour})
	s.Touch("")
	_ = s.Set("a", 1)
	_ = s.Set("b", 2)

	last := s.pending[len(s.pending)-1]
	if last.Kind != OpExpire {
		t.Fatalf("expected the expiry last in the pipeline, got %s", last.Kind)
	}
	expires := 0
	for _, op := range s.pending {
		if op.Kind == OpExpire {
			expires++
		}
	}
	if expires != 1 {
		t.Fatalf("expected a single expire, got %d", expires)
	}
}

func TestUntouchedWriteQueuesNoExpire(t *testing.T) {
	s := New(nil, "plain", Config{})
	_ = s.Set("a", 1)
	for _, op := range s.pending {
		if op.Kind == OpExpire {
			t.Fatal("an untouched session must not queue an expiry")
		}
	}
}

func TestTouchAlwaysMarksDirty(t *testing.T) {
	inner, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	store := &recordingStore{Store: inner}
	s := New(store, "dirty", Config{})
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(store.execs) != 0 {
		t.Fatal("clean session must not contact the store on save")
	}

	s.Touch("")
	if !s.Dirty() {
		t.Fatal("touch must mark the session dirty")
	}
	if err := s.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(store.execs) != 1 {
		t.Fatalf("expected one pipeline, got %d", len(store.execs))
	}
}

func TestSaveForceSubmitsCleanSession(t *testing.T) {
	inner, _, done := newSessionStoreTest(t)
	defer done()

	store := &recordingStore{Store: inner}
	s := New(store, "force", Config{})
	if err := s.Save(context.Background(), true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(store.execs) != 1 {
		t.Fatalf("forced save should submit the (empty) pipeline, got %d", len(store.execs))
	}
}

func TestCorruptFieldDoesNotAbortLoad(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	seed := New(store, "corrupt", Config{})
	_ = seed.Set("y", "fine")
	if err := seed.Save(ctx, false); err != nil {
		t.Fatalf("seed save: %v", err)
	}
	mr.HSet(seed.Key(), "x", "\x80\x04garbage")

	obs := &countingObserver{}
	loaded, err := Load(ctx, store, "corrupt", Config{Observer: obs})
	if err != nil {
		t.Fatalf("load must not fail for one corrupt field: %v", err)
	}

	got, err := loaded.Get(ctx, "x", "sentinel")
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
	var derr *DecodeError
	if !errors.As(err, &derr) || derr.Field != "x" {
		t.Fatalf("expected *DecodeError for field x, got %v", err)
	}
	if got != "sentinel" {
		t.Fatalf("corrupt field must return the default, got %#v", got)
	}

	y, err := loaded.Get(ctx, "y", nil)
	if err != nil || y != "fine" {
		t.Fatalf("healthy field should load normally, got %#v err=%v", y, err)
	}
	keys, _ := loaded.Keys(ctx)
	if !reflect.DeepEqual(keys, []string{"y"}) {
		t.Fatalf("unexpected keys %v", keys)
	}
	if _, ok := loaded.DecodeErrors()["x"]; !ok || obs.decodeErrs != 1 {
		t.Fatalf("decode failure not recorded, errs=%v observed=%d", loaded.DecodeErrors(), obs.decodeErrs)
	}
}

func TestCorruptFieldOnPointFetch(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "corrupt-lazy", Config{})
	mr.HSet(s.Key(), "x", "nope")

	if _, err := s.Get(ctx, "x", nil); !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
	if ok, _ := s.Has(ctx, "x"); !ok {
		t.Fatal("corrupt field still exists in the store")
	}

	// Overwriting the field repairs it.
	_ = s.Set("x", "repaired")
	if got, err := s.Get(ctx, "x", nil); err != nil || got != "repaired" {
		t.Fatalf("expected repaired value, got %#v err=%v", got, err)
	}
}

func TestFieldFetchDoesNotMarkLoaded(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	seed := New(store, "lazy", Config{})
	_ = seed.Set("a", "1")
	_ = seed.Set("b", "2")
	if err := seed.Save(ctx, false); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	obs := &countingObserver{}
	s := New(store, "lazy", Config{Observer: obs})
	for _, k := range []string{"a", "b", "missing"} {
		if _, err := s.Get(ctx, k, nil); err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
	}
	if s.Loaded() {
		t.Fatal("single-field fetches must not mark the session loaded")
	}
	if obs.fetches != 3 || obs.fullLoads != 0 {
		t.Fatalf("expected 3 field fetches and no full load, got %d/%d", obs.fetches, obs.fullLoads)
	}

	// cached fields are not fetched again
	_, _ = s.Get(ctx, "a", nil)
	if obs.fetches != 3 {
		t.Fatalf("cached field was fetched again, fetches=%d", obs.fetches)
	}

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 2 || obs.fullLoads != 1 || !s.Loaded() {
		t.Fatalf("enumeration must force one full load, len=%d loads=%d", n, obs.fullLoads)
	}

	// once loaded, absent fields are answered locally
	_, _ = s.Get(ctx, "missing", nil)
	if obs.fetches != 3 {
		t.Fatalf("loaded session fetched an absent field, fetches=%d", obs.fetches)
	}
}

func TestFullLoadKeepsLocalWrites(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	seed := New(store, "merge", Config{})
	_ = seed.Set("a", 1)
	_ = seed.Set("b", 2)
	if err := seed.Save(ctx, false); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	s := New(store, "merge", Config{})
	_ = s.Set("a", 10)
	items, err := s.Items(ctx)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	want := map[string]any{"a": int64(10), "b": int64(2)}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("merge overwrote local write: got %#v want %#v", items, want)
	}
}

func TestCopyProducesUnsavedSession(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	src := New(store, "src", Config{TTL: time.Hour})
	_ = src.Set("cart", []string{"apple"})
	src.Touch("")
	if err := src.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := New(store, "src", Config{TTL: time.Hour})
	dup, err := fresh.Copy(ctx, "dst")
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if dup.ID() != "dst" || !dup.Dirty() {
		t.Fatalf("copy should be an unsaved session under the new id, id=%q dirty=%v", dup.ID(), dup.Dirty())
	}
	if mr.Exists(dup.Key()) {
		t.Fatal("copy must not be written before save")
	}

	if err := dup.Save(ctx, false); err != nil {
		t.Fatalf("save copy: %v", err)
	}
	if ttl := mr.TTL(dup.Key()); ttl != 0 {
		t.Fatalf("copy must not inherit the source ttl, got %v", ttl)
	}

	reloaded, err := Load(ctx, store, "dst", Config{})
	if err != nil {
		t.Fatalf("load copy: %v", err)
	}
	cart, _ := reloaded.Get(ctx, "cart", nil)
	if !reflect.DeepEqual(cart, []any{"apple"}) {
		t.Fatalf("unexpected copied value %#v", cart)
	}

	derived, err := fresh.Copy(ctx, "")
	if err != nil {
		t.Fatalf("copy with derived id: %v", err)
	}
	if derived.ID() == "" || derived.ID() == fresh.ID() {
		t.Fatalf("expected a freshly minted id, got %q", derived.ID())
	}
}

func TestViewIsSortedAndDeterministic(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "view", Config{})
	_ = s.Set("l", []string{"p"})
	_ = s.Set("b", 2)
	_ = s.Set("a", "x")

	out, err := s.View(ctx)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	want := "{\n  \"a\": \"x\",\n  \"b\": 2,\n  \"l\": [\n    \"p\"\n  ]\n}"
	if string(out) != want {
		t.Fatalf("unexpected view:\n%s\nwant:\n%s", out, want)
	}

	_ = s.Set("bad", math.Inf(1))
	if _, err := s.View(ctx); !errors.Is(err, ErrNotRepresentable) {
		t.Fatalf("expected ErrNotRepresentable, got %v", err)
	}
}

func TestViewFailsOnCorruptField(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "view-corrupt", Config{})
	seed := New(store, "view-corrupt", Config{})
	_ = seed.Set("y", "ok")
	if err := seed.Save(ctx, false); err != nil {
		t.Fatalf("seed save: %v", err)
	}
	mr.HSet(s.Key(), "x", "\xffnot-a-value")
	mr.HSet(s.Key(), "w", "\xffalso-broken")

	out, err := s.View(ctx)
	if !errors.Is(err, ErrNotRepresentable) {
		t.Fatalf("expected ErrNotRepresentable, got %v (out=%s)", err, out)
	}
	var derr *DecodeError
	if !errors.As(err, &derr) || derr.Field != "w" {
		t.Fatalf("expected the first corrupt field in key order, got %v", err)
	}
	if out != nil {
		t.Fatalf("no partial view may be returned, got %s", out)
	}
}

func TestBackendUnavailableSurfaces(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	s := New(store, "down", Config{})
	_ = s.Set("foo", "bar")
	mr.Close()

	if _, err := s.Get(ctx, "other", nil); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable from get, got %v", err)
	}
	if err := s.Save(ctx, false); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable from save, got %v", err)
	}
	if !s.Dirty() || s.Pending() != 1 {
		t.Fatalf("failed save must keep the pipeline, dirty=%v pending=%d", s.Dirty(), s.Pending())
	}
	if _, err := Load(ctx, store, "down", Config{}); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable from load, got %v", err)
	}
}

func TestTwoInstancesShareRecordNotCache(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	first := New(store, "tabs", Config{})
	second := New(store, "tabs", Config{})

	_ = first.Set("theme", "dark")
	if ok, _ := second.Has(ctx, "theme"); ok {
		t.Fatal("instances must not share in-process state")
	}
	if err := first.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	_ = second.Set("theme", "light")
	if err := second.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	final := New(store, "tabs", Config{})
	if got, _ := final.Get(ctx, "theme", nil); got != "light" {
		t.Fatalf("last writer per field should win, got %#v", got)
	}
}
