package assets

import (
	"context"

	"github.com/angelmondragon/storefront-core/internal/entitystore"
	"github.com/angelmondragon/storefront-core/pkg/db/models"
)

// MetadataStore is the durable record of saved profile images.
type MetadataStore interface {
	Latest(ctx context.Context, userID string) (*models.ImageMetadata, error)
	Record(ctx context.Context, meta *models.ImageMetadata) error
}

// MetadataRepository keeps ImageMetadata rows in the entity store. Rows are
// only ever appended.
type MetadataRepository struct {
	store *entitystore.Store
}

func NewMetadataRepository(store *entitystore.Store) *MetadataRepository {
	return &MetadataRepository{store: store}
}

// Latest returns the most recently updated row for userID, or nil.
func (r *MetadataRepository) Latest(ctx context.Context, userID string) (*models.ImageMetadata, error) {
	return entitystore.FetchFirst[models.ImageMetadata](ctx, r.store,
		entitystore.Where("user_id = ?", userID),
		entitystore.SortBy("last_updated", true),
	)
}

func (r *MetadataRepository) Record(ctx context.Context, meta *models.ImageMetadata) error {
	return entitystore.Create(ctx, r.store, meta)
}
