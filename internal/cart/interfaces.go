package cart

import (
	"context"

	"github.com/angelmondragon/storefront-core/internal/entitystore"
	"github.com/angelmondragon/storefront-core/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *entitystore.Store) CartRepository
	FindByProductID(ctx context.Context, productID string) (*models.CartLine, error)
	List(ctx context.Context) ([]models.CartLine, error)
	Create(ctx context.Context, line *models.CartLine) error
	SetQuantity(ctx context.Context, line *models.CartLine, quantity int) error
	Delete(ctx context.Context, line *models.CartLine) error
	DeleteAll(ctx context.Context) error
}

type txRunner interface {
	Atomically(ctx context.Context, fn func(tx *entitystore.Store) error) error
}
