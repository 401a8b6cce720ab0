// Package catalog resolves cart lines into priced rows using product records
// fetched from the API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// maxParallelFetches bounds concurrent product requests per Price call.
const maxParallelFetches = 8

type ProductSource interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

// Row is a cart line joined with its product and effective unit price.
type Row struct {
	Line          domain.CartLine
	Product       domain.Product
	UnitPrice     decimal.Decimal
	CampaignTitle string
}

// LineTotal is UnitPrice × quantity.
func (r Row) LineTotal() decimal.Decimal {
	return r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Line.Quantity)))
}

// Discounted reports whether a campaign price below the catalog price applies.
func (r Row) Discounted() bool {
	return r.Line.HasOverride() && r.UnitPrice.LessThan(r.Product.Price)
}

type Catalog struct {
	source ProductSource
	cache  ProductCache
	sfg    singleflight.Group // Prevents cache stampede
	log    zerolog.Logger
}

func New(source ProductSource, cache ProductCache, log zerolog.Logger) *Catalog {
	if cache == nil {
		cache = NopCache{}
	}
	return &Catalog{
		source: source,
		cache:  cache,
		log:    log.With().Str("component", "catalog").Logger(),
	}
}

// Product returns a product record, from cache when possible.
func (c *Catalog) Product(ctx context.Context, id int64) (*domain.Product, error) {
	v, err, _ := c.sfg.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		p, err := c.cache.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn().Err(err).Int64("product_id", id).Msg("cache get error")
		}

		p, err = c.source.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, p); err != nil {
			c.log.Warn().Err(err).Int64("product_id", id).Msg("cache set error")
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*domain.Product)
	return &p, nil
}

// Invalidate drops a cached product, e.g. after a stock change.
func (c *Catalog) Invalidate(ctx context.Context, id int64) {
	if err := c.cache.Delete(ctx, id); err != nil {
		c.log.Warn().Err(err).Int64("product_id", id).Msg("cache invalidate error")
	}
}

// Price resolves lines into rows in cart order. Lines whose product no longer
// exists are skipped; any other fetch failure fails the whole call.
func (c *Catalog) Price(ctx context.Context, lines []domain.CartLine) ([]Row, error) {
	products := make([]*domain.Product, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, line := range lines {
		g.Go(func() error {
			p, err := c.Product(gctx, line.ProductID)
			if api.IsNotFound(err) {
				c.log.Info().Int64("product_id", line.ProductID).Msg("cart product no longer exists")
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch product %d: %w", line.ProductID, err)
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(lines))
	for i, line := range lines {
		p := products[i]
		if p == nil {
			continue
		}
		row := Row{Line: line, Product: *p, UnitPrice: p.Price, CampaignTitle: line.CampaignTitle}
		if line.UnitPriceOverride != nil {
			row.UnitPrice = *line.UnitPriceOverride
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Subtotal is the sum of the rows' line totals.
func Subtotal(rows []Row) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.LineTotal())
	}
	return total
}
