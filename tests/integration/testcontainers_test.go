// Package integration provides container-backed integration tests for the
// TOC extractor.
package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lexatlas/toc-extractor/internal/cache"
	"github.com/lexatlas/toc-extractor/internal/config"
	"github.com/lexatlas/toc-extractor/internal/domain"
	"github.com/lexatlas/toc-extractor/internal/extract"
	"github.com/lexatlas/toc-extractor/internal/observability"
)

// RedisSetup represents the test container infrastructure.
type RedisSetup struct {
	Container testcontainers.Container
	Addr      string
	cleanup   func()
}

// SetupRedisContainer starts a Redis container for cache tests.
func SetupRedisContainer(t *testing.T) *RedisSetup {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)

	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return &RedisSetup{
		Container: redisContainer,
		Addr:      fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
		cleanup: func() {
			if err := redisContainer.Terminate(ctx); err != nil {
				t.Logf("Failed to terminate redis container: %v", err)
			}
		},
	}
}

// Cleanup terminates the test container.
func (s *RedisSetup) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func skipWithoutDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		t.Skip("Docker not available")
	}
}

func redisCacheClient(t *testing.T, addr string) cache.Client {
	t.Helper()
	client, err := cache.New(config.CacheConfig{
		Enabled: true,
		Driver:  "redis",
		TTL:     time.Minute,
		Redis:   config.RedisConfig{Addr: addr},
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	return client
}

func TestRedisCacheRoundTrip(t *testing.T) {
	skipWithoutDocker(t)

	setup := SetupRedisContainer(t)
	defer setup.Cleanup()

	client := redisCacheClient(t, setup.Addr)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := cache.CacheKey("extract", "abc123", "5")
	require.NoError(t, client.Set(ctx, key, []byte(`{"toc_entries":[]}`), time.Minute))

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"toc_entries":[]}`, string(got))

	require.NoError(t, client.Delete(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestRedisCacheExpiry(t *testing.T) {
	skipWithoutDocker(t)

	setup := SetupRedisContainer(t)
	defer setup.Cleanup()

	client := redisCacheClient(t, setup.Addr)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, client.Set(ctx, "transient", []byte("value"), time.Second))

	got, err := client.Get(ctx, "transient")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	time.Sleep(1500 * time.Millisecond)

	_, err = client.Get(ctx, "transient")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestRedisCacheDeleteByPrefix(t *testing.T) {
	skipWithoutDocker(t)

	setup := SetupRedisContainer(t)
	defer setup.Cleanup()

	client := redisCacheClient(t, setup.Addr)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, client.Set(ctx, cache.CacheKey("extract", "aaa", "5"), []byte("a"), time.Minute))
	require.NoError(t, client.Set(ctx, cache.CacheKey("extract", "bbb", "5"), []byte("b"), time.Minute))
	require.NoError(t, client.Set(ctx, "unrelated", []byte("keep"), time.Minute))

	require.NoError(t, client.DeleteByPrefix(ctx, "extract"))

	_, err := client.Get(ctx, cache.CacheKey("extract", "aaa", "5"))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	_, err = client.Get(ctx, cache.CacheKey("extract", "bbb", "5"))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	kept, err := client.Get(ctx, "unrelated")
	require.NoError(t, err)
	assert.Equal(t, []byte("keep"), kept)
}

// countingRasterizer fakes page rendering and records invocations.
type countingRasterizer struct {
	calls int
}

func (r *countingRasterizer) RasterizePages(ctx context.Context, pdfPath string, maxPages int) ([]domain.PageImage, error) {
	r.calls++
	return []domain.PageImage{{Index: 0, PNG: []byte("png-bytes"), Scale: 2.0}}, nil
}

// countingGateway fakes the model call and records invocations.
type countingGateway struct {
	calls int
}

func (g *countingGateway) ExtractTOC(ctx context.Context, pages []domain.PageImage) (*domain.ExtractionResult, error) {
	g.calls++
	result := domain.NewExtractionResult()
	result.TOCEntries = append(result.TOCEntries, domain.TOCEntry{
		CaseNumber: "0000123/2023",
		RawText:    "0000123/2023 Juicio nº 123 a instancia de A contra B .................. Página 3",
	})
	return result, nil
}

func TestPipelineCachesResultsInRedis(t *testing.T) {
	skipWithoutDocker(t)

	setup := SetupRedisContainer(t)
	defer setup.Cleanup()

	client := redisCacheClient(t, setup.Addr)
	defer client.Close()

	logger := observability.NewLogger(observability.LogConfig{Level: "error", Format: "json"})
	rasterizer := &countingRasterizer{}
	gateway := &countingGateway{}
	service := extract.NewService(rasterizer, gateway, logger,
		extract.WithCache(client, time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	content := []byte("%PDF-1.7 fake document body")

	first, _, err := service.ExtractFromBytes(ctx, "demanda.pdf", content, 5, "")
	require.NoError(t, err)
	require.Len(t, first.TOCEntries, 1)
	require.Equal(t, 1, gateway.calls)

	// Byte-identical resubmission must be served from Redis
	second, _, err := service.ExtractFromBytes(ctx, "demanda.pdf", content, 5, "")
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.calls)
	assert.Equal(t, 1, rasterizer.calls)
	assert.Equal(t, first.TOCEntries, second.TOCEntries)

	// A different page limit is a distinct cache entry
	_, _, err = service.ExtractFromBytes(ctx, "demanda.pdf", content, 7, "")
	require.NoError(t, err)
	assert.Equal(t, 2, gateway.calls)
}

// isDockerAvailable checks if Docker is available for testing.
func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}
