package retrieval

import (
	"math"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutHasQuery(t *testing.T) {
	store := openTestStore(t)

	if err := store.Put("a", "/lib/a.mp4", []float32{1, 0, 0}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put("b", "/lib/b.mp4", []float32{0, 1, 0}); err != nil {
		t.Fatalf("put: %v", err)
	}

	has, err := store.Has("a")
	if err != nil || !has {
		t.Errorf("Has(a) = %v, %v; want true, nil", has, err)
	}
	has, err = store.Has("missing")
	if err != nil || has {
		t.Errorf("Has(missing) = %v, %v; want false, nil", has, err)
	}

	matches, err := store.Query([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ContentID != "a" {
		t.Errorf("closest match = %s, want a", matches[0].ContentID)
	}
	if math.Abs(matches[0].Distance) > 1e-6 {
		t.Errorf("identical vector distance = %v, want ~0", matches[0].Distance)
	}
	if math.Abs(matches[1].Distance-1) > 1e-6 {
		t.Errorf("orthogonal vector distance = %v, want ~1", matches[1].Distance)
	}
}

func TestStoreQueryTopK(t *testing.T) {
	store := openTestStore(t)
	vecs := [][]float32{{1, 0}, {0.9, 0.1}, {0, 1}}
	for i, v := range vecs {
		if err := store.Put(string(rune('a'+i)), "/lib/x.mp4", v); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	matches, err := store.Query([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("topK not honored, got %d matches", len(matches))
	}
}

func TestStorePutReplaces(t *testing.T) {
	store := openTestStore(t)
	if err := store.Put("a", "/lib/old.mp4", []float32{1, 0}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put("a", "/lib/new.mp4", []float32{0, 1}); err != nil {
		t.Fatalf("put again: %v", err)
	}

	n, err := store.Count()
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v; want 1, nil", n, err)
	}
	matches, err := store.Query([]float32{0, 1}, 1)
	if err != nil || len(matches) != 1 {
		t.Fatalf("query: %v", err)
	}
	if matches[0].Path != "/lib/new.mp4" {
		t.Errorf("path = %s, want /lib/new.mp4", matches[0].Path)
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75}
	out := decodeEmbedding(encodeEmbedding(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
}

func TestNormalize(t *testing.T) {
	vec := normalize([]float32{3, 4})
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Errorf("normalize(3,4) = %v, want (0.6, 0.8)", vec)
	}

	zero := normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector should pass through, got %v", zero)
	}
}
