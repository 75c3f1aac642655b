package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CartSnapshot is the common read shape of both cart representations.
// A product may be selected without having a quantity; such entries are
// ignored by SelectedLines.
type CartSnapshot struct {
	Quantities map[int64]int64
	Selected   map[int64]bool
}

func NewCartSnapshot() *CartSnapshot {
	return &CartSnapshot{
		Quantities: make(map[int64]int64),
		Selected:   make(map[int64]bool),
	}
}

// CartLine is one (product, count, selected) fact.
type CartLine struct {
	ProductID int64
	Count     int64
	Selected  bool
}

// Lines returns every product with a quantity, ordered by product id.
func (s *CartSnapshot) Lines() []CartLine {
	lines := make([]CartLine, 0, len(s.Quantities))
	for id, count := range s.Quantities {
		lines = append(lines, CartLine{ProductID: id, Count: count, Selected: s.Selected[id]})
	}
	sortLines(lines)
	return lines
}

// SelectedLines returns the selected products that also carry a positive
// quantity, ordered by product id.
func (s *CartSnapshot) SelectedLines() []CartLine {
	lines := make([]CartLine, 0, len(s.Selected))
	for id, selected := range s.Selected {
		if !selected {
			continue
		}
		count, ok := s.Quantities[id]
		if !ok || count <= 0 {
			continue
		}
		lines = append(lines, CartLine{ProductID: id, Count: count, Selected: true})
	}
	sortLines(lines)
	return lines
}

// ProductIDs returns the ids of every product with a quantity.
func (s *CartSnapshot) ProductIDs() []int64 {
	ids := make([]int64, 0, len(s.Quantities))
	for id := range s.Quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortLines(lines []CartLine) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
}

// GuestItem is the co-located quantity and selection of an anonymous cart entry.
type GuestItem struct {
	Count    int64
	Selected bool
}

// GuestItems is the anonymous shopper's cart, carried inside the guest token.
type GuestItems map[int64]GuestItem

// Snapshot converts the guest mapping into the common read shape.
func (g GuestItems) Snapshot() *CartSnapshot {
	s := NewCartSnapshot()
	for id, item := range g {
		s.Quantities[id] = item.Count
		if item.Selected {
			s.Selected[id] = true
		}
	}
	return s
}

// CartItemView is a cart line joined with catalog data for display.
type CartItemView struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Count     int64           `json:"count"`
	Selected  bool            `json:"selected"`
}
