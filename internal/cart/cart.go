// Package cart holds the shopper's pending purchase list in client-local storage.
//
// The cart never fails: malformed stored data reads as an empty cart, inputs are
// clamped instead of rejected, and storage errors are logged and swallowed.
package cart

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/fjod/shopsphere/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Key is the storage key of the cart record.
const Key = "shopsphere_cart_v1"

// MaxQuantity is the largest quantity a line can hold. Stored lines above it
// are unreadable, so writes saturate here.
const MaxQuantity = math.MaxInt32

// LineMeta is the optional campaign pricing attached when a product is added.
type LineMeta struct {
	UnitPrice     *decimal.Decimal
	CampaignID    *int64
	CampaignTitle string
}

type Store struct {
	storage storage.Store
	log     zerolog.Logger

	// mu serializes read-modify-write cycles of this instance.
	mu sync.Mutex

	subMu sync.Mutex
	subs  map[chan Event]struct{}
}

// New builds the cart over st. Construct one per application instance.
func New(st storage.Store, log zerolog.Logger) *Store {
	return &Store{
		storage: st,
		log:     log.With().Str("component", "cart").Logger(),
		subs:    make(map[chan Event]struct{}),
	}
}

// Lines returns the cart in insertion order.
func (s *Store) Lines(ctx context.Context) []domain.CartLine {
	raw, err := s.storage.GetItem(ctx, Key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn().Err(err).Msg("read cart")
		}
		return []domain.CartLine{}
	}
	return decodeLines(raw)
}

// Add increments the line for productID, or appends a new one. Metadata already
// on the line is kept; missing fields are filled from meta.
func (s *Store) Add(ctx context.Context, productID int64, quantity int, meta LineMeta) {
	if productID <= 0 {
		return
	}
	qty := clampQuantity(quantity)

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.Lines(ctx)
	for i := range lines {
		l := &lines[i]
		if l.ProductID != productID {
			continue
		}
		l.Quantity = addQuantity(l.Quantity, qty)
		if l.UnitPriceOverride == nil && validPrice(meta.UnitPrice) {
			l.UnitPriceOverride = meta.UnitPrice
		}
		if l.CampaignID == nil && validCampaign(meta.CampaignID) {
			l.CampaignID = meta.CampaignID
		}
		if l.CampaignTitle == "" {
			l.CampaignTitle = meta.CampaignTitle
		}
		s.save(ctx, lines)
		return
	}

	line := domain.CartLine{
		ProductID:     productID,
		Quantity:      qty,
		CampaignTitle: meta.CampaignTitle,
	}
	if validPrice(meta.UnitPrice) {
		line.UnitPriceOverride = meta.UnitPrice
	}
	if validCampaign(meta.CampaignID) {
		line.CampaignID = meta.CampaignID
	}
	s.save(ctx, append(lines, line))
}

// Update sets the quantity of an existing line, clamped to [1, MaxQuantity].
func (s *Store) Update(ctx context.Context, productID int64, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.Lines(ctx)
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = clampQuantity(quantity)
			s.save(ctx, lines)
			return
		}
	}
}

func (s *Store) Remove(ctx context.Context, productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.Lines(ctx)
	kept := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lines) {
		return
	}
	s.save(ctx, kept)
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(ctx, nil)
}

// Replace overwrites the cart. Invalid lines are dropped and duplicates merged.
func (s *Store) Replace(ctx context.Context, lines []domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(ctx, normalize(lines))
}

// Count is the sum of quantities, for badge display.
func (s *Store) Count(ctx context.Context) int {
	total := 0
	for _, l := range s.Lines(ctx) {
		total += l.Quantity
	}
	return total
}

// ItemCount is the quantity of productID in the cart, 0 when absent.
func (s *Store) ItemCount(ctx context.Context, productID int64) int {
	for _, l := range s.Lines(ctx) {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

func (s *Store) save(ctx context.Context, lines []domain.CartLine) {
	raw, err := encodeLines(lines)
	if err != nil {
		s.log.Error().Err(err).Msg("encode cart")
		return
	}
	if err := s.storage.SetItem(ctx, Key, raw); err != nil {
		s.log.Error().Err(err).Int("lines", len(lines)).Msg("persist cart")
		return
	}
	s.notify(SourceLocal)
}

func clampQuantity(q int) int {
	return min(max(1, q), MaxQuantity)
}

// addQuantity sums two clamped quantities, saturating at MaxQuantity.
func addQuantity(a, b int) int {
	if a > MaxQuantity-b {
		return MaxQuantity
	}
	return a + b
}

func validPrice(p *decimal.Decimal) bool {
	return p != nil && !p.IsNegative()
}

func validCampaign(id *int64) bool {
	return id != nil && *id > 0
}

func normalize(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 || l.Quantity <= 0 {
			continue
		}
		if l.UnitPriceOverride != nil && l.UnitPriceOverride.IsNegative() {
			continue
		}
		if l.CampaignID != nil && *l.CampaignID <= 0 {
			continue
		}
		l.Quantity = clampQuantity(l.Quantity)
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity = addQuantity(out[i].Quantity, l.Quantity)
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}
