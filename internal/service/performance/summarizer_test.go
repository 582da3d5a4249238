package performance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perfmodel "github.com/educhain/assistant/backend/internal/model/performance"
)

type stubCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key, summary string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = summary
	m.ttls[key] = ttl
	return nil
}

func sampleSnapshot() perfmodel.Snapshot {
	streak := 7
	rate := 80.0
	return perfmodel.Snapshot{
		CoursesCompleted:   5,
		AverageScore:       85,
		BadgesEarned:       3,
		CertificatesIssued: 2,
		TimeSpent:          25,
		LearningStreak:     &streak,
		CompletionRate:     &rate,
	}
}

func TestSummarizeUsesPerformancePrompt(t *testing.T) {
	completer := &stubCompleter{reply: "Great progress!"}
	s := NewSummarizer(completer, nil, time.Hour)

	got := s.Summarize(context.Background(), sampleSnapshot())
	assert.Equal(t, Summary{Text: "Great progress!"}, got)
	require.Len(t, completer.prompts, 1)
	assert.True(t, strings.HasPrefix(completer.prompts[0], "Please analyze the following learning performance metrics"))
	assert.Contains(t, completer.prompts[0], "- Courses Completed: 5\n")
}

func TestSummarizeFallback(t *testing.T) {
	for name, completer := range map[string]*stubCompleter{
		"error": {err: errors.New("status 500")},
		"blank": {reply: "  "},
	} {
		t.Run(name, func(t *testing.T) {
			cache := newMemoryCache()
			got := NewSummarizer(completer, cache, time.Hour).Summarize(context.Background(), sampleSnapshot())
			assert.Equal(t, FallbackSummary, got.Text)
			assert.True(t, got.Fallback)
			assert.Empty(t, cache.entries)
		})
	}
}

func TestSummarizeCachesBySnapshot(t *testing.T) {
	completer := &stubCompleter{reply: "Keep going!"}
	cache := newMemoryCache()
	s := NewSummarizer(completer, cache, 30*time.Minute)

	first := s.Summarize(context.Background(), sampleSnapshot())
	second := s.Summarize(context.Background(), sampleSnapshot())

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, "Keep going!", second.Text)
	assert.Len(t, completer.prompts, 1)
	for _, ttl := range cache.ttls {
		assert.Equal(t, 30*time.Minute, ttl)
	}

	other := sampleSnapshot()
	other.BadgesEarned = 4
	s.Summarize(context.Background(), other)
	assert.Len(t, completer.prompts, 2)
}

func TestSummarizeIgnoresUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	cache := NewRedisCacheWithClient(client, "educhain")
	defer cache.Close()

	completer := &stubCompleter{reply: "Nice work"}
	got := NewSummarizer(completer, cache, time.Hour).Summarize(context.Background(), sampleSnapshot())
	assert.Equal(t, "Nice work", got.Text)
	assert.False(t, got.Fallback)
}

func TestRedisCacheBuildKey(t *testing.T) {
	cache := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "educhain")
	defer cache.Close()
	assert.Equal(t, "educhain:summary:abc", cache.BuildKey("abc"))
}
