package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// History records which videos have already been downloaded so reruns
// can reuse existing files instead of hitting the network.
type History interface {
	Seen(ctx context.Context, videoID string) (bool, error)
	Mark(ctx context.Context, videoID string) error
	Close() error
}

// FileHistory keeps download history in a single JSON file.
type FileHistory struct {
	path string

	mu  sync.Mutex
	ids map[string]bool
}

// NewFileHistory loads history from path, starting empty when the file
// is missing or unreadable.
func NewFileHistory(path string) *FileHistory {
	h := &FileHistory{path: path, ids: make(map[string]bool)}

	raw, err := os.ReadFile(path)
	if err != nil {
		return h
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return h
	}
	for _, id := range ids {
		h.ids[id] = true
	}
	return h
}

func (h *FileHistory) Seen(ctx context.Context, videoID string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ids[videoID], nil
}

func (h *FileHistory) Mark(ctx context.Context, videoID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ids[videoID] {
		return nil
	}
	h.ids[videoID] = true

	ids := make([]string, 0, len(h.ids))
	for id := range h.ids {
		ids = append(ids, id)
	}
	raw, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.WriteFile(h.path, raw, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (h *FileHistory) Close() error { return nil }

// RedisHistory keeps download history in a redis set, shared across
// worker instances.
type RedisHistory struct {
	client *redis.Client
	key    string
}

// NewRedisHistory connects to redis and verifies connectivity.
func NewRedisHistory(addr, password string, db int) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisHistory{client: client, key: "clipforge:downloads"}, nil
}

func (h *RedisHistory) Seen(ctx context.Context, videoID string) (bool, error) {
	return h.client.SIsMember(ctx, h.key, videoID).Result()
}

func (h *RedisHistory) Mark(ctx context.Context, videoID string) error {
	return h.client.SAdd(ctx, h.key, videoID).Err()
}

func (h *RedisHistory) Close() error {
	return h.client.Close()
}
