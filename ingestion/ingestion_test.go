package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"clipforge/config"
)

func TestFileHistoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	ctx := context.Background()

	h := NewFileHistory(path)
	seen, err := h.Seen(ctx, "abc")
	if err != nil || seen {
		t.Errorf("Seen on empty history = %v, %v", seen, err)
	}

	if err := h.Mark(ctx, "abc"); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	// Reload from disk.
	h2 := NewFileHistory(path)
	seen, err = h2.Seen(ctx, "abc")
	if err != nil || !seen {
		t.Errorf("Seen after reload = %v, %v; want true", seen, err)
	}
	seen, _ = h2.Seen(ctx, "other")
	if seen {
		t.Errorf("unmarked id reported as seen")
	}
}

func TestFileHistoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{bad"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := NewFileHistory(path)
	seen, err := h.Seen(context.Background(), "abc")
	if err != nil || seen {
		t.Errorf("corrupt file should start empty, got %v, %v", seen, err)
	}
}

type commandLog struct {
	calls [][]string
	id    string
}

func (c *commandLog) run(ctx context.Context, name string, args ...string) (string, error) {
	c.calls = append(c.calls, append([]string{name}, args...))
	for _, a := range args {
		if a == "--print" {
			return c.id + "\n", nil
		}
	}
	return "", nil
}

func hasArg(call []string, want string) bool {
	for _, a := range call {
		if a == want {
			return true
		}
	}
	return false
}

func newTestDownloader(t *testing.T, workspace string, history History, cmds *commandLog) *Downloader {
	t.Helper()
	cfg := config.DownloaderConfig{ExtractAudio: true, CheckDuplicates: true}
	d := NewDownloader(cfg, workspace, history, zerolog.Nop())
	d.runCommand = cmds.run
	return d
}

func TestDownloaderFetch(t *testing.T) {
	workspace := t.TempDir()
	history := NewFileHistory(filepath.Join(workspace, "history.json"))
	cmds := &commandLog{id: "vid42"}
	d := newTestDownloader(t, workspace, history, cmds)

	dl, err := d.Fetch(context.Background(), "https://example.com/watch?v=vid42")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if dl.ID != "vid42" {
		t.Errorf("id = %q, want vid42", dl.ID)
	}
	if !strings.HasSuffix(dl.VideoPath, "vid42.mp4") || !strings.HasSuffix(dl.AudioPath, "vid42.wav") {
		t.Errorf("unexpected paths: %+v", dl)
	}

	// id probe, video download, audio extract
	if len(cmds.calls) != 3 {
		t.Fatalf("expected 3 yt-dlp invocations, got %d", len(cmds.calls))
	}
	if !hasArg(cmds.calls[1], "--merge-output-format") {
		t.Errorf("video download call missing merge format: %v", cmds.calls[1])
	}
	if !hasArg(cmds.calls[2], "-x") {
		t.Errorf("audio call missing extract flag: %v", cmds.calls[2])
	}

	seen, _ := history.Seen(context.Background(), "vid42")
	if !seen {
		t.Errorf("download not recorded in history")
	}
}

func TestDownloaderReusesExistingFiles(t *testing.T) {
	workspace := t.TempDir()
	history := NewFileHistory(filepath.Join(workspace, "history.json"))
	history.Mark(context.Background(), "vid42")
	for _, name := range []string{"vid42.mp4", "vid42.wav"} {
		if err := os.WriteFile(filepath.Join(workspace, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cmds := &commandLog{id: "vid42"}
	d := newTestDownloader(t, workspace, history, cmds)

	dl, err := d.Fetch(context.Background(), "https://example.com/watch?v=vid42")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if dl.ID != "vid42" {
		t.Errorf("id = %q", dl.ID)
	}
	// Only the id probe should have run.
	if len(cmds.calls) != 1 {
		t.Errorf("expected 1 invocation for reuse, got %d: %v", len(cmds.calls), cmds.calls)
	}
}

func TestDownloaderRedownloadsMissingFiles(t *testing.T) {
	workspace := t.TempDir()
	history := NewFileHistory(filepath.Join(workspace, "history.json"))
	history.Mark(context.Background(), "vid42")

	cmds := &commandLog{id: "vid42"}
	d := newTestDownloader(t, workspace, history, cmds)

	if _, err := d.Fetch(context.Background(), "https://example.com/watch?v=vid42"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(cmds.calls) != 3 {
		t.Errorf("missing files should trigger re-download, got %d calls", len(cmds.calls))
	}
}
