// Package combination expands a parsed forecast request into the atomic
// (product, customer, period) units the resolution engine works on.
package combination

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest indicates a request that cannot be expanded:
// empty product/customer sets or an out-of-range period.
var ErrInvalidRequest = errors.New("invalid forecast request")

// Period identifies a single forecast month.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Valid reports whether the period month is in 1-12.
func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12
}

func (p Period) String() string {
	return fmt.Sprintf("%d/%d", p.Month, p.Year)
}

// Combination is one atomic unit of forecasting work. It is produced by
// Expand, consumed by the resolution engine, and never persisted itself.
type Combination struct {
	Product  string `json:"product"`
	Customer string `json:"customer"`
	Period   Period `json:"period"`
}

// Expand generates the cartesian product of products x customers, all sharing
// the supplied period. Input order is preserved: for products [A B] and
// customers [X Y] the output is AxX, AxY, BxX, BxY. Duplicate identifiers in
// the input are collapsed before expansion so a product listed twice does not
// multiply the result.
func Expand(products, customers []string, period Period) ([]Combination, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: no products specified", ErrInvalidRequest)
	}
	if len(customers) == 0 {
		return nil, fmt.Errorf("%w: no customers specified", ErrInvalidRequest)
	}
	if !period.Valid() {
		return nil, fmt.Errorf("%w: month %d outside 1-12", ErrInvalidRequest, period.Month)
	}

	products = dedupe(products)
	customers = dedupe(customers)

	combos := make([]Combination, 0, len(products)*len(customers))
	for _, prod := range products {
		for _, cust := range customers {
			combos = append(combos, Combination{
				Product:  prod,
				Customer: cust,
				Period:   period,
			})
		}
	}
	return combos, nil
}

// dedupe removes duplicates while keeping first-occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
