// Package assets resolves and stores users' profile images across four tiers:
// the in-process memory cache, the secure pointer store, the metadata table
// and finally a scan of the blob directory. Lookups that are answered by a
// slow tier write the answer back to the faster ones.
package assets

import (
	"fmt"
	"io"
	"time"

	"github.com/angelmondragon/storefront-core/pkg/auth/session"
	"github.com/angelmondragon/storefront-core/pkg/imaging"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"github.com/angelmondragon/storefront-core/pkg/pointer"
	"golang.org/x/sync/singleflight"
)

// Artifact is a stored profile image. Values handed out by the cache are
// shared and must be treated as read-only.
type Artifact struct {
	UserID    string
	Path      string
	Data      []byte
	SizeBytes int64
}

// BlobStore is the directory holding the encoded images.
type BlobStore interface {
	Write(name string, data []byte) (string, error)
	Read(path string) ([]byte, error)
	Exists(path string) bool
	Path(name string) string
	ListContaining(substr string) ([]string, error)
}

// MemoryTier is the hot in-process tier keyed by user id.
type MemoryTier interface {
	Get(userID string) (*Artifact, bool)
	Add(userID string, art *Artifact) bool
	Remove(userID string) bool
}

// Params wires a Cache.
type Params struct {
	Session  session.Session
	Blobs    BlobStore
	Memory   MemoryTier
	Pointers pointer.Store
	Metadata MetadataStore
	Imaging  imaging.Processor

	MaxDimension int
	Quality      int

	Logger  *logger.Logger
	Metrics *metrics.AssetCacheMetrics
	Now     func() time.Time
}

// Cache is the tiered profile image cache.
type Cache struct {
	session  session.Session
	blobs    BlobStore
	memory   MemoryTier
	pointers pointer.Store
	metadata MetadataStore
	imaging  imaging.Processor

	maxDimension int
	quality      int

	logg    *logger.Logger
	metrics *metrics.AssetCacheMetrics
	now     func() time.Time

	loads singleflight.Group
}

// New validates p and builds a Cache.
func New(p Params) (*Cache, error) {
	switch {
	case p.Session == nil:
		return nil, fmt.Errorf("session required")
	case p.Blobs == nil:
		return nil, fmt.Errorf("blob store required")
	case p.Memory == nil:
		return nil, fmt.Errorf("memory tier required")
	case p.Pointers == nil:
		return nil, fmt.Errorf("pointer store required")
	case p.Metadata == nil:
		return nil, fmt.Errorf("metadata store required")
	}
	if p.MaxDimension <= 0 {
		return nil, fmt.Errorf("max dimension must be positive")
	}
	if p.Quality < 1 || p.Quality > 100 {
		return nil, fmt.Errorf("quality must be within 1..100, got %d", p.Quality)
	}
	if p.Imaging == nil {
		p.Imaging = imaging.JPEG{}
	}
	if p.Logger == nil {
		p.Logger = logger.New(logger.Options{ServiceName: "assets", Output: io.Discard})
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Cache{
		session:      p.Session,
		blobs:        p.Blobs,
		memory:       p.Memory,
		pointers:     p.Pointers,
		metadata:     p.Metadata,
		imaging:      p.Imaging,
		maxDimension: p.MaxDimension,
		quality:      p.Quality,
		logg:         p.Logger,
		metrics:      p.Metrics,
		now:          p.Now,
	}, nil
}

// Invalidate drops userID from the memory tier. Durable tiers are untouched.
func (c *Cache) Invalidate(userID string) {
	c.memory.Remove(userID)
}
