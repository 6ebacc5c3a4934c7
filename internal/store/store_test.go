package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codebysope/crypto-checker/internal/errkind"
)

// flakyBackend wraps a MemoryBackend and fails on demand.
type flakyBackend struct {
	*MemoryBackend
	failReads  bool
	failWrites bool
	writes     int
}

func (f *flakyBackend) Get(namespace string) (string, bool, error) {
	if f.failReads {
		return "", false, errors.New("disk on fire")
	}
	return f.MemoryBackend.Get(namespace)
}

func (f *flakyBackend) Set(namespace, value string) error {
	f.writes++
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.MemoryBackend.Set(namespace, value)
}

func newFlaky() *flakyBackend {
	return &flakyBackend{MemoryBackend: NewMemoryBackend()}
}

func TestWatchlistAddIsIdempotent(t *testing.T) {
	b := newFlaky()
	w := New(b).Watchlist()

	for _, id := range []string{"bitcoin", "ethereum", "bitcoin"} {
		if err := w.Add(id); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if diff := cmp.Diff([]string{"bitcoin", "ethereum"}, w.IDs()); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if b.writes != 2 {
		t.Errorf("duplicate add should not write, got %d writes", b.writes)
	}

	if err := w.Remove("dogecoin"); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	if err := w.Remove("bitcoin"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if w.Contains("bitcoin") || !w.Contains("ethereum") {
		t.Errorf("unexpected membership: %v", w.IDs())
	}

	raw, _, _ := b.MemoryBackend.Get(NamespaceWatchlist)
	if raw != `["ethereum"]` {
		t.Errorf("expected write-through, stored %s", raw)
	}
}

func TestWatchlistToggle(t *testing.T) {
	w := New(NewMemoryBackend()).Watchlist()

	present, err := w.Toggle("cardano")
	if err != nil || !present {
		t.Fatalf("first toggle: present=%v err=%v", present, err)
	}
	present, err = w.Toggle("cardano")
	if err != nil || present {
		t.Fatalf("second toggle: present=%v err=%v", present, err)
	}
}

func TestCollectionsLoadLazily(t *testing.T) {
	b := newFlaky()
	b.MemoryBackend.Set(NamespaceWatchlist, `["bitcoin","bitcoin","solana"]`)
	b.MemoryBackend.Set(NamespaceSavedArticles, `["article-1"]`)
	s := New(b)

	if diff := cmp.Diff([]string{"bitcoin", "solana"}, s.Watchlist().IDs()); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if !s.SavedArticles().Set()["article-1"] {
		t.Error("expected saved article to load")
	}
	if first, second := s.Watchlist(), s.Watchlist(); first != second {
		t.Error("Watchlist should return the same collection")
	}
}

func TestRecentViewsCap(t *testing.T) {
	r := New(NewMemoryBackend()).RecentViews()

	for i := 1; i <= 6; i++ {
		if err := r.Add(RecentView{ID: fmt.Sprintf("coin-%d", i)}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	var got []string
	for _, item := range r.Items() {
		got = append(got, item.ID)
	}
	want := []string{"coin-6", "coin-5", "coin-4", "coin-3", "coin-2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recent views (-want +got):\n%s", diff)
	}
}

func TestRecentViewsMoveToFront(t *testing.T) {
	r := New(NewMemoryBackend()).RecentViews()
	for _, id := range []string{"a", "b", "c"} {
		r.Add(RecentView{ID: id})
	}
	r.Add(RecentView{ID: "a", Name: "again"})

	items := r.Items()
	if len(items) != 3 || items[0].ID != "a" || items[0].Name != "again" || items[1].ID != "c" {
		t.Errorf("unexpected order: %+v", items)
	}
}

func TestPreferencesMergeDefaults(t *testing.T) {
	b := NewMemoryBackend()
	b.Set(NamespacePreferences, `{"chartColors":"neon"}`)
	defaults := map[string]any{"chartColors": "default", "showVolume": true, "timeFormat": "24h"}

	p := New(b, WithDefaultPreferences(defaults)).Preferences()
	want := map[string]any{"chartColors": "neon", "showVolume": true, "timeFormat": "24h"}
	if diff := cmp.Diff(want, p.All()); diff != "" {
		t.Errorf("prefs (-want +got):\n%s", diff)
	}

	if err := p.Update("timeFormat", "12h"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if v, _ := p.Get("timeFormat"); v != "12h" {
		t.Errorf("expected 12h, got %v", v)
	}

	reloaded := New(b, WithDefaultPreferences(defaults)).Preferences()
	if v, _ := reloaded.Get("timeFormat"); v != "12h" {
		t.Errorf("update was not persisted, got %v", v)
	}

	all := p.All()
	all["chartColors"] = "mutated"
	if v, _ := p.Get("chartColors"); v != "neon" {
		t.Error("All must return a copy")
	}
}

func TestCorruptContentFallsBackToDefault(t *testing.T) {
	b := NewMemoryBackend()
	b.Set(NamespaceWatchlist, `{not json`)
	b.Set(NamespaceRecentViews, `"a string"`)
	s := New(b)

	if ids := s.Watchlist().IDs(); len(ids) != 0 {
		t.Errorf("expected empty watchlist, got %v", ids)
	}
	if items := s.RecentViews().Items(); len(items) != 0 {
		t.Errorf("expected empty recent views, got %v", items)
	}

	var ids []string
	err := s.Load(NamespaceWatchlist, &ids)
	if !errors.Is(err, errkind.ErrStorageRead) {
		t.Errorf("expected StorageRead, got %v", err)
	}
}

func TestReadFailureFallsBackToDefault(t *testing.T) {
	b := newFlaky()
	b.failReads = true
	s := New(b, WithDefaultPreferences(map[string]any{"showVolume": true}))

	if v, ok := s.Preferences().Get("showVolume"); !ok || v != true {
		t.Errorf("expected default preference, got %v", v)
	}
	if len(s.Watchlist().IDs()) != 0 {
		t.Error("expected empty watchlist")
	}
}

func TestWriteFailureKeepsMemoryAuthoritative(t *testing.T) {
	b := newFlaky()
	b.failWrites = true
	w := New(b).Watchlist()

	err := w.Add("bitcoin")
	if !errors.Is(err, errkind.ErrStorageWrite) {
		t.Fatalf("expected StorageWrite, got %v", err)
	}
	if !w.Contains("bitcoin") {
		t.Error("in-memory state must survive a failed write")
	}
	if kind, _ := errkind.KindOf(err); kind != errkind.StorageWrite {
		t.Errorf("expected StorageWrite kind, got %v", kind)
	}
}

func TestLoadAbsentLeavesValue(t *testing.T) {
	s := New(NewMemoryBackend())
	ids := []string{"keep"}
	if err := s.Load("nothing", &ids); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("absent namespace must not touch v, got %v", ids)
	}
}
