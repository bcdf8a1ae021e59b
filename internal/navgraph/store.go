// internal/navgraph/store.go
package navgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

const fileSuffix = "_graph.json"

// MatchKind says how a stored document relates to the queried site.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchParent
	MatchSibling
)

func (m MatchKind) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchParent:
		return "parent"
	default:
		return "sibling"
	}
}

// Document is one stored site graph.
type Document struct {
	Key     string
	Path    string
	ModTime time.Time
	Match   MatchKind
	Graph   schemas.NavigationGraph
}

// Statistics summarises the store.
type Statistics struct {
	TotalGraphs int      `json:"total_graphs"`
	TotalPages  int      `json:"total_pages"`
	Sites       []string `json:"sites"`
}

// Store keeps one JSON graph document per site in a directory.
type Store struct {
	dir    string
	cfg    config.NavigationConfig
	logger *zap.Logger

	// mu serialises read-merge-write cycles.
	mu  sync.Mutex
	now func() time.Time
}

// NewStore opens (and creates) the graph directory.
func NewStore(cfg config.NavigationConfig, logger *zap.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("navigation graph directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, schemas.NewStorageError("mkdir", cfg.Dir, err)
	}
	return &Store{
		dir:    cfg.Dir,
		cfg:    cfg,
		logger: logger.Named("navgraph"),
		now:    time.Now,
	}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) pathFor(key string) string {
	return filepath.Join(s.dir, key+fileSuffix)
}

// Save merges graph into the document of websiteURL's site and returns the
// merged document. An empty graph is a no-op.
func (s *Store) Save(ctx context.Context, graph schemas.NavigationGraph, websiteURL string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := Canonicalize(websiteURL)
	if err != nil {
		return nil, err
	}
	key := c.SiteKey()
	path := s.pathFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.readForMerge(path)
	if err != nil {
		return nil, err
	}
	if len(graph) == 0 {
		return &Document{Key: key, Path: path, Graph: prev}, nil
	}

	merged := Merge(prev, graph)
	if err := writeAtomic(path, merged); err != nil {
		return nil, err
	}

	s.logger.Info("Saved navigation graph.",
		zap.String("site", key),
		zap.Int("new_pages", len(graph)),
		zap.Int("total_pages", len(merged)))
	return &Document{Key: key, Path: path, ModTime: s.now(), Graph: merged}, nil
}

// readForMerge loads the current document. A corrupt document is moved aside
// and treated as absent.
func (s *Store) readForMerge(path string) (schemas.NavigationGraph, error) {
	g, err := readGraph(path)
	switch {
	case err == nil:
		return g, nil
	case errors.Is(err, fs.ErrNotExist):
		return schemas.NavigationGraph{}, nil
	case errors.Is(err, errCorrupt):
		aside := path + ".corrupt"
		if rerr := os.Rename(path, aside); rerr != nil {
			return nil, schemas.NewStorageError("quarantine", path, rerr)
		}
		s.logger.Warn("Moved corrupt navigation graph aside.", zap.String("path", aside), zap.Error(err))
		return schemas.NavigationGraph{}, nil
	default:
		return nil, err
	}
}

var errCorrupt = errors.New("corrupt navigation graph document")

func readGraph(path string) (schemas.NavigationGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, schemas.NewStorageError("read", path, err)
	}
	var g schemas.NavigationGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errCorrupt, path, err)
	}
	if g == nil {
		g = schemas.NavigationGraph{}
	}
	return g, nil
}

func writeAtomic(path string, g schemas.NavigationGraph) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode navigation graph: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return schemas.NewStorageError("create temp", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return schemas.NewStorageError("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return schemas.NewStorageError("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return schemas.NewStorageError("close", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return schemas.NewStorageError("rename", path, err)
	}
	return nil
}

// Find returns the best document for websiteURL, or nil when none matches.
func (s *Store) Find(ctx context.Context, websiteURL string) (*Document, error) {
	docs, err := s.FindAll(ctx, websiteURL)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return &docs[0], nil
}

// FindAll returns every document relevant to websiteURL, best first: the
// site's own document, then parent domains nearest first, then other hosts
// under the same registrable domain, newest first. Documents older than the
// configured max age and unreadable documents are skipped.
func (s *Store) FindAll(ctx context.Context, websiteURL string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := Canonicalize(websiteURL)
	if err != nil {
		return nil, err
	}
	key := c.SiteKey()
	hostname := c.Hostname()
	reg := c.Registrable()

	rank := map[string]int{key: 0}
	for i, p := range parentKeys(hostname) {
		if _, taken := rank[p]; !taken {
			rank[p] = i + 1
		}
	}

	entries, err := s.list()
	if err != nil {
		return nil, err
	}

	var docs []Document
	ranks := map[string]int{}
	for _, e := range entries {
		r, ok := rank[e.key]
		match := MatchParent
		switch {
		case ok && r == 0:
			match = MatchExact
		case ok:
		case registrable(hostnameFromKey(e.key)) == reg:
			match = MatchSibling
			r = len(rank) + 1
		default:
			continue
		}
		if s.expired(e.modTime) {
			s.logger.Debug("Skipping stale navigation graph.", zap.String("site", e.key))
			continue
		}
		g, err := readGraph(e.path)
		if err != nil {
			s.logger.Warn("Skipping unreadable navigation graph.", zap.String("path", e.path), zap.Error(err))
			continue
		}
		ranks[e.key] = r
		docs = append(docs, Document{Key: e.key, Path: e.path, ModTime: e.modTime, Match: match, Graph: g})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		ri, rj := ranks[docs[i].Key], ranks[docs[j].Key]
		if ri != rj {
			return ri < rj
		}
		if !docs[i].ModTime.Equal(docs[j].ModTime) {
			return docs[i].ModTime.After(docs[j].ModTime)
		}
		return docs[i].Key < docs[j].Key
	})
	return docs, nil
}

func (s *Store) expired(mod time.Time) bool {
	return s.cfg.MaxAge > 0 && s.now().Sub(mod) > s.cfg.MaxAge
}

type entry struct {
	key     string
	path    string
	modTime time.Time
}

func (s *Store) list() ([]entry, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, schemas.NewStorageError("list", s.dir, err)
	}
	out := make([]entry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, entry{
			key:     strings.TrimSuffix(name, fileSuffix),
			path:    filepath.Join(s.dir, name),
			modTime: info.ModTime(),
		})
	}
	return out, nil
}

// Statistics counts stored documents and pages. Corrupt documents count as
// graphs with no pages.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	if err := ctx.Err(); err != nil {
		return Statistics{}, err
	}
	entries, err := s.list()
	if err != nil {
		return Statistics{}, err
	}
	st := Statistics{Sites: make([]string, 0, len(entries))}
	for _, e := range entries {
		st.TotalGraphs++
		st.Sites = append(st.Sites, e.key)
		if g, err := readGraph(e.path); err == nil {
			st.TotalPages += len(g)
		}
	}
	sort.Strings(st.Sites)
	return st, nil
}
