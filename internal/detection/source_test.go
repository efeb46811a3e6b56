package detection

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
)

const threatRules = `
version: "v-threat"
labels:
  - label: threat
    keywords: [不雅照]
priority:
  - stage: 6
    labels: [threat]
`

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(threatRules), 0o600))

	src := &FileSource{Path: path}
	rs, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v-threat", rs.Version())

	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnchanged)

	// Different size invalidates the stamp even within the same mtime tick.
	require.NoError(t, os.WriteFile(path, []byte(threatRules+"\n# edited\n"), 0o600))
	_, err = src.Load(context.Background())
	assert.NoError(t, err)
}

func TestFileSource_Missing(t *testing.T) {
	src := &FileSource{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	_, err := src.Load(context.Background())
	assert.Error(t, err)
}

type fakeStore struct {
	mu        sync.Mutex
	body      string
	etag      string
	headErr   error
	downloads int
}

func (s *fakeStore) HeadObject(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.etag, s.headErr
}

func (s *fakeStore) Download(_ context.Context, _ string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads++
	return io.NopCloser(strings.NewReader(s.body)), s.etag, nil
}

func TestObjectSource_ETag(t *testing.T) {
	store := &fakeStore{body: threatRules, etag: "e1"}
	src := &ObjectSource{Store: store, Key: "rules/scam.yaml"}

	_, err := src.Load(context.Background())
	require.NoError(t, err)

	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnchanged)
	assert.Equal(t, 1, store.downloads)

	store.etag = "e2"
	_, err = src.Load(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, store.downloads)
}

func TestReloader(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	log := logger.NewWithWriter("error", io.Discard)
	d := New(Config{Logger: log})

	store := &fakeStore{body: threatRules, etag: "e1"}
	r := NewReloader(d, &ObjectSource{Store: store, Key: "k"}, m, log)

	loaded, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "v-threat", d.Rules().Version())

	loaded, err = r.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded)

	// A broken dictionary keeps the current set.
	store.body = "labels: [\n"
	store.etag = "e2"
	loaded, err = r.Reload(context.Background())
	assert.Error(t, err)
	assert.False(t, loaded)
	assert.Equal(t, "v-threat", d.Rules().Version())

	store.headErr = errors.New("network down")
	_, err = r.Reload(context.Background())
	assert.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.RuleReloadsTotal.WithLabelValues("r2", "loaded")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RuleReloadsTotal.WithLabelValues("r2", "unchanged")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.RuleReloadsTotal.WithLabelValues("r2", "error")), 0)
}

type slowSource struct {
	mu sync.Mutex
	n  int
}

func (s *slowSource) Name() string { return "slow" }

func (s *slowSource) Load(_ context.Context) (*RuleSet, error) {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	return DefaultRuleSet(), nil
}

func TestReloader_CoalescesConcurrentCalls(t *testing.T) {
	log := logger.NewWithWriter("error", io.Discard)
	src := &slowSource{}
	r := NewReloader(New(Config{Logger: log}), src, nil, log)

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			_, _ = r.Reload(context.Background())
		})
	}
	wg.Wait()

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Less(t, src.n, 5)
}
