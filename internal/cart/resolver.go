package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Catalog is the read side of the primary store the resolver joins across.
type Catalog interface {
	GetCartByUser(ctx context.Context, userID int64) (*domain.Cart, error)
	GetCartByID(ctx context.Context, cartID int64) (*domain.Cart, error)
	GetVariant(ctx context.Context, id int64) (*domain.Variant, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	GetBrand(ctx context.Context, id int64) (*domain.Brand, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// Resolver builds denormalized cart snapshots from live catalog data.
// It never reads the projection.
type Resolver struct {
	catalog     Catalog
	parallelism int
}

func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog, parallelism: 8}
}

func (r *Resolver) ResolveForUser(ctx context.Context, userID int64) (*domain.CartProjection, error) {
	c, err := r.catalog.GetCartByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, c)
}

func (r *Resolver) ResolveByID(ctx context.Context, cartID int64) (*domain.CartProjection, error) {
	c, err := r.catalog.GetCartByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, c)
}

// Resolve joins every line with variant, product, category and brand and
// recomputes each line total. Lines keep the cart's order.
func (r *Resolver) Resolve(ctx context.Context, c *domain.Cart) (*domain.CartProjection, error) {
	items := make([]domain.CartItem, len(c.Lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, line := range c.Lines {
		g.Go(func() error {
			item, err := r.resolveLine(gctx, line)
			if err != nil {
				return fmt.Errorf("resolve variant %d: %w", line.VariantID, err)
			}
			items[i] = item
			return nil
		})
	}

	var email string
	g.Go(func() error {
		u, err := r.catalog.GetUser(gctx, c.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			// unknown users resolve without contact details
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve user %d: %w", c.UserID, err)
		}
		email = u.Email
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.CartProjection{
		ID:          c.ID,
		UserID:      c.UserID,
		User:        email,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		ExpiredAt:   c.ExpiredAt,
		CartProduct: items,
	}, nil
}

func (r *Resolver) resolveLine(ctx context.Context, line domain.CartLine) (domain.CartItem, error) {
	v, err := r.catalog.GetVariant(ctx, line.VariantID)
	if err != nil {
		return domain.CartItem{}, err
	}
	p, err := r.catalog.GetProduct(ctx, v.ProductID)
	if err != nil {
		return domain.CartItem{}, err
	}
	category, err := r.catalog.GetCategory(ctx, p.CategoryID)
	if err != nil {
		return domain.CartItem{}, err
	}
	brand, err := r.catalog.GetBrand(ctx, p.BrandID)
	if err != nil {
		return domain.CartItem{}, err
	}

	item := domain.CartItem{
		ID:        v.ID,
		Reference: p.Reference,
		Name:      p.Name,
		Color:     v.Color,
		Size:      v.Size,
		Category:  category.Name,
		Brand:     brand.Name,
		Image:     v.Image,
		Stock:     v.Stock,
		Quantity:  line.Quantity,
		UnitPrice: p.Price,
	}
	item.Recompute()
	return item, nil
}
