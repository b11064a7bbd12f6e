package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-core/internal/entitystore"
	"github.com/angelmondragon/storefront-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/angelmondragon/storefront-core/pkg/logger"
)

// Service exposes cart operations over the local store.
type Service interface {
	FetchByProductID(ctx context.Context, productID string) (*models.CartLine, error)
	AddOrMerge(ctx context.Context, line *models.CartLine) error
	UpdateQuantity(ctx context.Context, line *models.CartLine, quantity int) error
	List(ctx context.Context) ([]models.CartLine, error)
	Remove(ctx context.Context, line *models.CartLine) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

type service struct {
	repo CartRepository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) FetchByProductID(ctx context.Context, productID string) (*models.CartLine, error) {
	return s.repo.FindByProductID(ctx, productID)
}

// AddOrMerge inserts line when its product is not yet in the cart. Otherwise
// the existing line absorbs line.CartQuantity, capped at the existing line's
// stock; line's own stock only matters when it becomes a new line. The
// lookup and the write run under one writer lock.
func (s *service) AddOrMerge(ctx context.Context, line *models.CartLine) error {
	if err := validateDelta(line); err != nil {
		return err
	}

	return s.tx.Atomically(ctx, func(tx *entitystore.Store) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByProductID(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if existing == nil {
			if err := validateNewLine(line); err != nil {
				return err
			}
			if err := repo.Create(ctx, line); err != nil {
				return err
			}
			s.log(ctx, "cart.line.added", line.ProductID, line.CartQuantity)
			return nil
		}

		merged := MergedQuantity(existing, line.CartQuantity)
		if err := repo.SetQuantity(ctx, existing, merged); err != nil {
			return err
		}
		s.log(ctx, "cart.line.merged", existing.ProductID, merged)
		return nil
	})
}

// UpdateQuantity overwrites the stored quantity. It is not clamped to stock.
func (s *service) UpdateQuantity(ctx context.Context, line *models.CartLine, quantity int) error {
	if line == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart line is required")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"CartQuantity": "must be at least 1"})
	}
	if err := s.repo.SetQuantity(ctx, line, quantity); err != nil {
		return err
	}
	s.log(ctx, "cart.line.quantity_set", line.ProductID, quantity)
	return nil
}

func (s *service) List(ctx context.Context) ([]models.CartLine, error) {
	return s.repo.List(ctx)
}

func (s *service) Remove(ctx context.Context, line *models.CartLine) error {
	if line == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart line is required")
	}
	return s.repo.Delete(ctx, line)
}

func (s *service) Clear(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}

// Count returns the total number of units across all lines.
func (s *service) Count(ctx context.Context) (int, error) {
	lines, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, l := range lines {
		total += l.CartQuantity
	}
	return total, nil
}

// MergedQuantity is the quantity existing ends up with after absorbing delta.
func MergedQuantity(existing *models.CartLine, delta int) int {
	return min(existing.StockQuantity, existing.CartQuantity+delta)
}

func (s *service) log(ctx context.Context, msg, productID string, quantity int) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithProductID(ctx, productID)
	ctx = s.logg.WithField(ctx, "cart_quantity", quantity)
	s.logg.Debug(ctx, msg)
}
