package retrieval

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type fakeEmbedder struct {
	vec []float32
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedImages(ctx context.Context, jpegs [][]byte) ([][]float32, error) {
	out := make([][]float32, len(jpegs))
	for i := range jpegs {
		out[i] = f.vec
	}
	return out, nil
}

type fakeQuerier struct {
	matches []Match
}

func (f *fakeQuerier) Query(embedding []float32, topK int) ([]Match, error) {
	if topK > 0 && len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func newTestMatcher(store querier, threshold float64, window int) *Matcher {
	return NewMatcher(store, &fakeEmbedder{vec: []float32{1, 0}}, 10, threshold, window, zerolog.Nop())
}

func TestFindMatchThreshold(t *testing.T) {
	store := &fakeQuerier{matches: []Match{
		{ContentID: "a", Path: "/lib/a.mp4", Distance: 0.7},
	}}
	m := newTestMatcher(store, 0.55, 5)

	path, err := m.FindMatch(context.Background(), "city skyline at night")
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	if path != "" {
		t.Errorf("distance above threshold should not match, got %q", path)
	}
}

func TestFindMatchSlidingWindow(t *testing.T) {
	store := &fakeQuerier{matches: []Match{
		{ContentID: "a", Path: "/lib/a.mp4", Distance: 0.1},
		{ContentID: "b", Path: "/lib/b.mp4", Distance: 0.2},
		{ContentID: "c", Path: "/lib/c.mp4", Distance: 0.3},
	}}
	m := newTestMatcher(store, 0.55, 2)

	want := []string{"/lib/a.mp4", "/lib/b.mp4", "/lib/c.mp4", "/lib/a.mp4"}
	for i, w := range want {
		path, err := m.FindMatch(context.Background(), "segment")
		if err != nil {
			t.Fatalf("match %d: %v", i, err)
		}
		if path != w {
			t.Errorf("match %d = %q, want %q", i, path, w)
		}
	}
}

func TestFindMatchSoleCandidateRotation(t *testing.T) {
	store := &fakeQuerier{matches: []Match{
		{ContentID: "a", Path: "/lib/a.mp4", Distance: 0.1},
	}}
	m := newTestMatcher(store, 0.55, 2)

	// The only candidate is matched once, then held out until the
	// window slides. With nothing else to accept, it never slides.
	want := []string{"/lib/a.mp4", "", ""}
	for i, w := range want {
		path, err := m.FindMatch(context.Background(), "segment")
		if err != nil {
			t.Fatalf("match %d: %v", i, err)
		}
		if path != w {
			t.Errorf("match %d = %q, want %q", i, path, w)
		}
	}
}

func TestFindMatchWindowDisabled(t *testing.T) {
	store := &fakeQuerier{matches: []Match{
		{ContentID: "a", Path: "/lib/a.mp4", Distance: 0.1},
	}}
	m := newTestMatcher(store, 0.55, 0)

	for i := 0; i < 3; i++ {
		path, err := m.FindMatch(context.Background(), "segment")
		if err != nil || path != "/lib/a.mp4" {
			t.Fatalf("match %d = %q, %v; want /lib/a.mp4", i, path, err)
		}
	}
}

func TestFindMatchEmptyStore(t *testing.T) {
	m := newTestMatcher(&fakeQuerier{}, 0.55, 5)
	path, err := m.FindMatch(context.Background(), "anything")
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	if path != "" {
		t.Errorf("empty store should not match, got %q", path)
	}
}

func TestMatcherReset(t *testing.T) {
	store := &fakeQuerier{matches: []Match{
		{ContentID: "a", Path: "/lib/a.mp4", Distance: 0.1},
	}}
	m := newTestMatcher(store, 0.55, 5)

	if path, _ := m.FindMatch(context.Background(), "x"); path != "/lib/a.mp4" {
		t.Fatalf("first match missing")
	}
	if path, _ := m.FindMatch(context.Background(), "x"); path != "" {
		t.Fatalf("window should exclude a, got %q", path)
	}
	m.Reset()
	if path, _ := m.FindMatch(context.Background(), "x"); path != "/lib/a.mp4" {
		t.Errorf("reset should clear the window")
	}
}
