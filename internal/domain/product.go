package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Shop is a storefront being watched. Rows are seeded by hand and only
// parse_params is refreshed at runtime.
type Shop struct {
	ID          int64        `db:"id"`
	Name        string       `db:"name"`
	Label       string       `db:"label"`
	Domain      string       `db:"domain"`
	URL         string       `db:"url"`
	ParseParams *ParseParams `db:"parse_params"`
	Enabled     bool         `db:"enabled"`
	NeedCookies bool         `db:"need_cookies"`
	Sort        int16        `db:"sort"`
}

// ParseParams carries per-shop scrape parameters stored as JSON.
type ParseParams struct {
	Headers            map[string]string `json:"headers,omitempty"`
	Cookies            map[string]string `json:"cookies,omitempty"`
	DeleteMissingStock *bool             `json:"delete_missing_stock,omitempty"`
}

// DeleteMissing reports the stock deletion policy for the shop; missing
// config means hard delete.
func (p *ParseParams) DeleteMissing() bool {
	if p == nil || p.DeleteMissingStock == nil {
		return true
	}
	return *p.DeleteMissingStock
}

// Product is one logical item in a shop. The same type carries both
// persisted rows (ID set) and freshly parsed snapshots (ID zero).
// Products are matched across scrapes by (ShopID, Reference).
type Product struct {
	ID        int64
	ShopID    int64
	ParentID  *int64
	Name      string
	URL       string
	ParseURL  string
	Reference string
	Params    *ProductParams
	Stocks    []Stock
	CreatedAt time.Time
}

// ProductParams is the variant-taxonomy metadata of a product family.
type ProductParams struct {
	TypeLabel   string        `json:"type_label,omitempty"`
	OptionLabel string        `json:"option_label,omitempty"`
	Types       []VariantType `json:"types,omitempty"`
}

// VariantType is one entry of the product "types" taxonomy (e.g. a colour).
type VariantType struct {
	Code string `json:"code"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Equal compares taxonomy metadata field by field.
func (p *ProductParams) Equal(other *ProductParams) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.TypeLabel != other.TypeLabel || p.OptionLabel != other.OptionLabel {
		return false
	}
	if len(p.Types) != len(other.Types) {
		return false
	}
	for i := range p.Types {
		if p.Types[i] != other.Types[i] {
			return false
		}
	}
	return true
}

// TypesByCode indexes the taxonomy entries by code.
func (p *ProductParams) TypesByCode() map[string]VariantType {
	if p == nil {
		return nil
	}
	m := make(map[string]VariantType, len(p.Types))
	for _, t := range p.Types {
		m[t.Code] = t
	}
	return m
}

// Stock is one purchasable variant line of a product, matched across
// scrapes by SKU within its product.
type Stock struct {
	ID        int64
	ProductID int64
	SKU       string
	Available bool
	PriceBase *decimal.Decimal
	PriceSale *decimal.Decimal
	PriceCard *decimal.Decimal
	Discount  *int64
	Params    *StockParams
}

// StockParams is the variant metadata of one stock line. The fields the
// engine inspects are typed; anything else a shop parser produces is kept
// as an opaque blob and travels through diffs untouched.
type StockParams struct {
	TypeCode   string
	OptionCode string
	OptionName string
	Extra      map[string]json.RawMessage
}

func (p *StockParams) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(p.Extra)+3)
	for k, v := range p.Extra {
		m[k] = v
	}
	for k, v := range map[string]string{
		"type_code":   p.TypeCode,
		"option_code": p.OptionCode,
		"option_name": p.OptionName,
	} {
		if v != "" {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			m[k] = b
		}
	}
	return json.Marshal(m)
}

func (p *StockParams) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for key, dst := range map[string]*string{
		"type_code":   &p.TypeCode,
		"option_code": &p.OptionCode,
		"option_name": &p.OptionName,
	} {
		if raw, ok := m[key]; ok {
			if err := json.Unmarshal(raw, dst); err != nil {
				return err
			}
			delete(m, key)
		}
	}
	if len(m) > 0 {
		p.Extra = m
	}
	return nil
}

// Equal compares the typed fields and the opaque remainder.
func (p *StockParams) Equal(other *StockParams) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.TypeCode != other.TypeCode ||
		p.OptionCode != other.OptionCode ||
		p.OptionName != other.OptionName {
		return false
	}
	if len(p.Extra) != len(other.Extra) {
		return false
	}
	for k, v := range p.Extra {
		ov, ok := other.Extra[k]
		if !ok || string(v) != string(ov) {
			return false
		}
	}
	return true
}

// PriceHistory is an append-only record of a stock line's prices as they
// were before an update was applied.
type PriceHistory struct {
	ID        int64
	StockID   int64
	PriceBase *decimal.Decimal
	PriceSale *decimal.Decimal
	PriceCard *decimal.Decimal
	At        time.Time
}

// DecimalsEqual compares two nullable prices.
func DecimalsEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Int64sEqual compares two nullable integers.
func Int64sEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ComputeDiscount derives the integer discount percent from base and sale
// prices: int(100 - 100*sale/base). Nil when either price is absent or the
// base is not positive.
func ComputeDiscount(base, sale *decimal.Decimal) *int64 {
	if base == nil || sale == nil || !base.IsPositive() {
		return nil
	}
	d := decimal.NewFromInt(100).Sub(decimal.NewFromInt(100).Mul(*sale).Div(*base)).IntPart()
	return &d
}
