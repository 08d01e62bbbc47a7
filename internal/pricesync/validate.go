package pricesync

import (
	"log/slog"
	"strings"

	"github.com/Veraticus/pricesync/internal/model"
)

// ValidateUpdates turns supplier quotes into price updates. Quotes without
// a code or price, with an unparseable price or with a negative price are
// dropped. Optional discount fields that do not parse are cleared.
func ValidateUpdates(quotes []model.PriceQuote) []model.PriceUpdate {
	valid := make([]model.PriceUpdate, 0, len(quotes))

	for _, q := range quotes {
		code := strings.TrimSpace(q.Code)
		if code == "" {
			slog.Warn("Skipping price update without code")
			continue
		}
		if strings.TrimSpace(q.Price) == "" {
			slog.Warn("Skipping price update without price", "code", code)
			continue
		}

		price, err := model.ParseAmount(q.Price)
		if err != nil {
			slog.Warn("Skipping price update with malformed price", "code", code, "price", q.Price)
			continue
		}
		if price.IsNegative() {
			slog.Warn("Skipping price update with negative price", "code", code, "price", q.Price)
			continue
		}

		u := model.PriceUpdate{Code: code, Price: price}
		if q.Discount != "" {
			if d, err := model.ParseAmount(q.Discount); err == nil {
				u.Discount = &d
			}
		}
		if q.DiscountPrice != "" {
			if d, err := model.ParseAmount(q.DiscountPrice); err == nil && !d.IsNegative() {
				u.DiscountPrice = &d
			}
		}
		valid = append(valid, u)
	}

	slog.Info("Validated price updates", "valid", len(valid), "total", len(quotes))
	return valid
}
