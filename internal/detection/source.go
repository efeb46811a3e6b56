package detection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
)

// ErrUnchanged is returned by a RuleSource when the dictionary has not
// changed since the previous successful load.
var ErrUnchanged = errors.New("rule dictionary unchanged")

// RuleSource produces rule sets from an external dictionary.
type RuleSource interface {
	Name() string
	Load(ctx context.Context) (*RuleSet, error)
}

// FileSource reads a YAML dictionary from disk. A file whose modification
// time and size match the last load reports ErrUnchanged.
type FileSource struct {
	Path string

	mu   sync.Mutex
	last fileStamp
}

type fileStamp struct {
	modUnixNano int64
	size        int64
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Load(_ context.Context) (*RuleSet, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("stat rule file: %w", err)
	}
	stamp := fileStamp{modUnixNano: info.ModTime().UnixNano(), size: info.Size()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stamp == s.last {
		return nil, ErrUnchanged
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open rule file: %w", err)
	}
	defer f.Close()

	rs, err := LoadRuleSet(f)
	if err != nil {
		return nil, err
	}
	s.last = stamp
	return rs, nil
}

// ObjectStore is the subset of the R2 client used for rule dictionaries.
type ObjectStore interface {
	HeadObject(ctx context.Context, key string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// ObjectSource reads a YAML dictionary from an object store. The object's
// ETag is compared before downloading.
type ObjectSource struct {
	Store ObjectStore
	Key   string

	mu   sync.Mutex
	etag string
}

func (s *ObjectSource) Name() string { return "r2" }

func (s *ObjectSource) Load(ctx context.Context) (*RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	etag, err := s.Store.HeadObject(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("head rule object: %w", err)
	}
	if etag != "" && etag == s.etag {
		return nil, ErrUnchanged
	}

	body, etag, err := s.Store.Download(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("download rule object: %w", err)
	}
	defer body.Close()

	rs, err := LoadRuleSet(body)
	if err != nil {
		return nil, err
	}
	s.etag = etag
	return rs, nil
}

// Reloader pulls rule sets from a source into a Detector. Concurrent
// Reload calls share one fetch.
type Reloader struct {
	detector *Detector
	source   RuleSource
	metrics  *metrics.Metrics
	logger   *logger.Logger
	group    singleflight.Group
}

// NewReloader creates a Reloader.
func NewReloader(d *Detector, src RuleSource, m *metrics.Metrics, log *logger.Logger) *Reloader {
	return &Reloader{
		detector: d,
		source:   src,
		metrics:  m,
		logger:   log.WithModule("rules"),
	}
}

// Reload fetches the dictionary and swaps it in. On any error, including
// ErrUnchanged, the active rule set is kept. Returns whether a new set was
// installed.
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	v, err, _ := r.group.Do(r.source.Name(), func() (any, error) {
		rs, err := r.source.Load(ctx)
		switch {
		case errors.Is(err, ErrUnchanged):
			r.metrics.RecordRuleReload(r.source.Name(), "unchanged")
			return false, nil
		case err != nil:
			r.metrics.RecordRuleReload(r.source.Name(), "error")
			return false, err
		}

		r.detector.SetRules(rs)
		r.metrics.RecordRuleReload(r.source.Name(), "loaded")
		r.logger.InfoContext(ctx, "Rule dictionary loaded",
			"source", r.source.Name(),
			"version", rs.Version(),
			"labels", len(rs.Labels()))
		return true, nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "Rule dictionary reload failed, keeping current set",
			"source", r.source.Name(), "error", err)
		return false, err
	}
	return v.(bool), nil
}
