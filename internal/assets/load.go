package assets

import (
	"context"
	"errors"
	"io/fs"

	"github.com/angelmondragon/storefront-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"github.com/angelmondragon/storefront-core/pkg/pointer"
)

// Load returns the current profile image for userID, or nil when no tier has
// one. Signed-out callers always get nil. Concurrent loads for the same user
// share one lookup.
func (c *Cache) Load(ctx context.Context, userID string) (*Artifact, error) {
	if !c.session.IsAuthenticated() || userID == "" {
		return nil, nil
	}
	v, err, _ := c.loads.Do(userID, func() (any, error) {
		return c.load(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	art, _ := v.(*Artifact)
	return art, nil
}

func (c *Cache) load(ctx context.Context, userID string) (*Artifact, error) {
	ctx = c.logg.WithUserID(ctx, userID)

	if art, ok := c.memory.Get(userID); ok {
		c.hit(ctx, metrics.TierMemory)
		return art, nil
	}

	art, err := c.fromPointer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if art != nil {
		c.memory.Add(userID, art)
		c.hit(ctx, metrics.TierPointer)
		return art, nil
	}

	art, err = c.fromMetadata(ctx, userID)
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeMetadataNotFound):
	case err != nil:
		return nil, err
	default:
		c.memory.Add(userID, art)
		c.repairPointer(ctx, art)
		c.hit(ctx, metrics.TierMetadata)
		return art, nil
	}

	art, err = c.fromScan(ctx, userID)
	if err != nil {
		return nil, err
	}
	if art != nil {
		c.memory.Add(userID, art)
		c.repairPointer(ctx, art)
		c.repairMetadata(ctx, art)
		c.metrics.IncRepair()
		c.hit(ctx, metrics.TierScan)
		return art, nil
	}

	c.hit(ctx, metrics.TierMiss)
	return nil, nil
}

func (c *Cache) fromPointer(ctx context.Context, userID string) (*Artifact, error) {
	path, ok, err := c.pointers.Get(ctx, pointer.Key(userID))
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "assets.load.pointer_unavailable")
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return c.readArtifact(userID, path)
}

func (c *Cache) fromMetadata(ctx context.Context, userID string) (*Artifact, error) {
	meta, err := c.metadata.Latest(ctx, userID)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "assets.load.metadata_unavailable")
		return nil, errMetadataNotFound(userID)
	}
	if meta == nil {
		return nil, errMetadataNotFound(userID)
	}
	art, err := c.readArtifact(userID, meta.ImagePath)
	if err != nil {
		return nil, err
	}
	if art == nil {
		c.logg.Debug(c.logg.WithField(ctx, "path", meta.ImagePath), "assets.load.metadata_stale")
		return nil, errMetadataNotFound(userID)
	}
	return art, nil
}

// fromScan picks the greatest matching path by plain string comparison.
func (c *Cache) fromScan(ctx context.Context, userID string) (*Artifact, error) {
	names, err := c.blobs.ListContaining(userID)
	if err != nil {
		return nil, errLoadFailed(err, "profile image directory")
	}
	best := ""
	for _, name := range names {
		if p := c.blobs.Path(name); p > best {
			best = p
		}
	}
	if best == "" {
		return nil, nil
	}
	return c.readArtifact(userID, best)
}

// readArtifact returns nil when path is empty or no longer exists.
func (c *Cache) readArtifact(userID, path string) (*Artifact, error) {
	if !c.blobs.Exists(path) {
		return nil, nil
	}
	data, err := c.blobs.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errLoadFailed(err, path)
	}
	return &Artifact{UserID: userID, Path: path, Data: data, SizeBytes: int64(len(data))}, nil
}

func (c *Cache) repairPointer(ctx context.Context, art *Artifact) {
	if err := c.pointers.Set(ctx, pointer.Key(art.UserID), art.Path); err != nil {
		c.logg.Error(ctx, "assets.repair.pointer_failed", err)
	}
}

func (c *Cache) repairMetadata(ctx context.Context, art *Artifact) {
	if err := c.metadata.Record(ctx, &models.ImageMetadata{
		UserID:         art.UserID,
		ImagePath:      art.Path,
		LastUpdated:    c.now().UTC(),
		ImageSizeBytes: art.SizeBytes,
	}); err != nil {
		c.logg.Error(ctx, "assets.repair.metadata_failed", err)
	}
}

func (c *Cache) hit(ctx context.Context, tier string) {
	c.metrics.IncTierHit(tier)
	c.logg.Debug(c.logg.WithField(ctx, "tier", tier), "assets.load.resolved")
}
