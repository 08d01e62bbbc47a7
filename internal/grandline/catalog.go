package grandline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Veraticus/pricesync/internal/common"
	"github.com/Veraticus/pricesync/internal/model"
)

// text decodes a JSON string, number or null into its textual form.
type text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*t = text(n.String())
	return nil
}

// PriceItem is one position of the supplier price list.
type PriceItem struct {
	NomenclatureID string
	Price          string
	Discount       string
	DiscountPrice  string
}

type priceItemJSON struct {
	NomenclatureID text `json:"nomenclature_id"`
	Price          text `json:"price"`
	Discount       text `json:"discount"`
	DiscountPrice  text `json:"discountPrice"`
}

// Nomenclature links a supplier nomenclature id to its 1C code and name.
type Nomenclature struct {
	ID     string
	Code1C string
	Name   string
}

type nomenclatureJSON struct {
	NomenclatureID text `json:"nomenclature_id"`
	Code1C         text `json:"code_1c"`
	Name           text `json:"name"`
}

// GetPrices fetches the price list for the configured branch and agreement.
func (c *Client) GetPrices(ctx context.Context) ([]PriceItem, error) {
	params := url.Values{}
	params.Set("branch_id", c.branchID)
	params.Set("agreement_id", c.agreementID)

	var raw []priceItemJSON
	if err := c.getJSON(ctx, "/prices/", params, &raw); err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}

	items := make([]PriceItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, PriceItem{
			NomenclatureID: string(r.NomenclatureID),
			Price:          string(r.Price),
			Discount:       string(r.Discount),
			DiscountPrice:  string(r.DiscountPrice),
		})
	}

	slog.Info("Received price positions", "count", len(items))
	return items, nil
}

// GetNomenclatures resolves nomenclature ids in batches of
// NomenclatureBatchSize. Entries without a 1C code are dropped.
func (c *Client) GetNomenclatures(ctx context.Context, ids []string) (map[string]Nomenclature, error) {
	result := make(map[string]Nomenclature, len(ids))

	for start := 0; start < len(ids); start += NomenclatureBatchSize {
		end := min(start+NomenclatureBatchSize, len(ids))
		batch := ids[start:end]

		params := url.Values{}
		params.Set("nomenclature_ids", strings.Join(batch, ","))

		var raw []nomenclatureJSON
		if err := c.getJSON(ctx, "/nomenclatures/", params, &raw); err != nil {
			return nil, fmt.Errorf("failed to get nomenclatures (batch at %d): %w", start, err)
		}

		for _, r := range raw {
			if r.NomenclatureID == "" || r.Code1C == "" {
				continue
			}
			result[string(r.NomenclatureID)] = Nomenclature{
				ID:     string(r.NomenclatureID),
				Code1C: string(r.Code1C),
				Name:   string(r.Name),
			}
		}

		common.LogDebug("Resolved nomenclature batch", common.Fields{"requested": len(batch), "total": len(result)})
	}

	slog.Info("Resolved nomenclatures", "requested", len(ids), "resolved", len(result))
	return result, nil
}

// ListSourceDescriptors returns one descriptor per priced position, keyed by
// its 1C code. Only the first limit positions are resolved; a non-positive
// limit resolves all of them.
func (c *Client) ListSourceDescriptors(ctx context.Context, limit int) ([]model.ProductDescriptor, error) {
	prices, err := c.GetPrices(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(prices) > limit {
		prices = prices[:limit]
	}

	noms, err := c.GetNomenclatures(ctx, nomenclatureIDs(prices))
	if err != nil {
		return nil, err
	}

	descriptors := make([]model.ProductDescriptor, 0, len(prices))
	for _, p := range prices {
		nom, ok := noms[p.NomenclatureID]
		if !ok {
			continue
		}

		d := model.ProductDescriptor{
			Identifier:  nom.Code1C,
			DisplayName: nom.Name,
		}
		if price, err := model.ParseAmount(p.Price); err == nil {
			d.Price = &price
		}
		if err := d.Validate(); err != nil {
			slog.Debug("Skipping source product", "nomenclature_id", p.NomenclatureID, "error", err)
			continue
		}
		descriptors = append(descriptors, d)
	}

	return descriptors, nil
}

// PriceQuotes joins the price list with the nomenclature codes. Positions
// without a price or without a resolvable 1C code are skipped.
func (c *Client) PriceQuotes(ctx context.Context) ([]model.PriceQuote, error) {
	prices, err := c.GetPrices(ctx)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		slog.Warn("No price data received")
		return nil, nil
	}

	ids := nomenclatureIDs(prices)
	if len(ids) == 0 {
		slog.Warn("No nomenclature ids found in price data")
		return nil, nil
	}

	noms, err := c.GetNomenclatures(ctx, ids)
	if err != nil {
		return nil, err
	}

	quotes := make([]model.PriceQuote, 0, len(prices))
	for _, p := range prices {
		if p.NomenclatureID == "" || p.Price == "" {
			continue
		}
		nom, ok := noms[p.NomenclatureID]
		if !ok {
			slog.Warn("No 1C code for nomenclature", "nomenclature_id", p.NomenclatureID)
			continue
		}
		quotes = append(quotes, model.PriceQuote{
			Code:          nom.Code1C,
			Price:         p.Price,
			Discount:      p.Discount,
			DiscountPrice: p.DiscountPrice,
		})
	}

	slog.Info("Prepared price quotes", "count", len(quotes))
	return quotes, nil
}

func nomenclatureIDs(prices []PriceItem) []string {
	ids := make([]string, 0, len(prices))
	seen := make(map[string]bool, len(prices))
	for _, p := range prices {
		if p.NomenclatureID == "" || seen[p.NomenclatureID] {
			continue
		}
		seen[p.NomenclatureID] = true
		ids = append(ids, p.NomenclatureID)
	}
	return ids
}
