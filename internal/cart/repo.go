package cart

import (
	"context"

	"github.com/angelmondragon/storefront-core/internal/entitystore"
	"github.com/angelmondragon/storefront-core/pkg/db/models"
)

// Repository exposes persistence operations for cart lines.
type Repository struct {
	store *entitystore.Store
}

// NewRepository constructs a cart repository bound to the provided store.
func NewRepository(store *entitystore.Store) *Repository {
	return &Repository{store: store}
}

// WithTx binds the repository to a transaction-scoped store.
func (r *Repository) WithTx(tx *entitystore.Store) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{store: tx}
}

// FindByProductID returns the live line for productID, or nil when the product
// is not in the cart.
func (r *Repository) FindByProductID(ctx context.Context, productID string) (*models.CartLine, error) {
	return entitystore.FetchFirst[models.CartLine](ctx, r.store,
		entitystore.Where("product_id = ?", productID),
	)
}

// List returns every line, oldest first.
func (r *Repository) List(ctx context.Context) ([]models.CartLine, error) {
	return entitystore.Fetch[models.CartLine](ctx, r.store,
		entitystore.SortBy("added_at", false),
		entitystore.SortBy("product_id", false),
	)
}

// Create inserts a new line.
func (r *Repository) Create(ctx context.Context, line *models.CartLine) error {
	return entitystore.Create(ctx, r.store, line)
}

// SetQuantity overwrites the cart quantity of line.
func (r *Repository) SetQuantity(ctx context.Context, line *models.CartLine, quantity int) error {
	return entitystore.Update(ctx, r.store, line, func(l *models.CartLine) {
		l.CartQuantity = quantity
	})
}

// Delete removes line.
func (r *Repository) Delete(ctx context.Context, line *models.CartLine) error {
	return entitystore.Delete(ctx, r.store, line)
}

// DeleteAll empties the cart.
func (r *Repository) DeleteAll(ctx context.Context) error {
	return entitystore.DeleteAll[models.CartLine](ctx, r.store)
}
