package assets

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/pointer"
)

// Save encodes img and writes it through every tier for userID. Any failing
// stage fails the save; earlier stages are not rolled back.
func (c *Cache) Save(ctx context.Context, img image.Image, userID string) (*Artifact, error) {
	start := time.Now()
	art, err := c.save(ctx, img, userID)
	c.metrics.ObserveSave(time.Since(start), err)
	if err != nil {
		c.logg.Error(c.logg.WithUserID(ctx, userID), "assets.save.failed", err)
		return nil, err
	}
	return art, nil
}

func (c *Cache) save(ctx context.Context, img image.Image, userID string) (*Artifact, error) {
	if !c.session.IsAuthenticated() {
		return nil, errUnauthorized()
	}
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	data, err := c.imaging.Encode(c.imaging.Resize(img, c.maxDimension), c.quality)
	if err != nil {
		return nil, errCompressionFailed(err)
	}

	now := c.now()
	path, err := c.blobs.Write(blobName(userID, now), data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSaveFailed, err, "write profile image")
	}

	art := &Artifact{UserID: userID, Path: path, Data: data, SizeBytes: int64(len(data))}
	c.memory.Add(userID, art)

	if err := c.metadata.Record(ctx, &models.ImageMetadata{
		UserID:         userID,
		ImagePath:      path,
		LastUpdated:    now.UTC(),
		ImageSizeBytes: art.SizeBytes,
	}); err != nil {
		return nil, err
	}

	if err := c.pointers.Set(ctx, pointer.Key(userID), path); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSaveFailed, err, "set image pointer")
	}

	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"user_id":    userID,
		"path":       path,
		"size_bytes": art.SizeBytes,
	}), "assets.save.ok")
	return art, nil
}

// blobName is profile_<userID>_<unix seconds with fraction>.jpg.
func blobName(userID string, at time.Time) string {
	return fmt.Sprintf("profile_%s_%d.%06d.jpg", userID, at.Unix(), at.Nanosecond()/int(time.Microsecond))
}
