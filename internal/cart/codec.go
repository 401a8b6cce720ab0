package cart

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/fjod/shopsphere/internal/domain"
	"github.com/shopspring/decimal"
)

// record is the persisted shape of a line. Older records carry only productId
// and quantity.
type record struct {
	ProductID     int64        `json:"productId"`
	Quantity      int          `json:"quantity"`
	UnitPrice     *json.Number `json:"unitPrice,omitempty"`
	CampaignID    *int64       `json:"campaignId,omitempty"`
	CampaignTitle string       `json:"campaignTitle,omitempty"`
}

func encodeLines(lines []domain.CartLine) (string, error) {
	records := make([]record, 0, len(lines))
	for _, l := range lines {
		r := record{
			ProductID:     l.ProductID,
			Quantity:      l.Quantity,
			CampaignID:    l.CampaignID,
			CampaignTitle: l.CampaignTitle,
		}
		if l.UnitPriceOverride != nil {
			n := json.Number(l.UnitPriceOverride.String())
			r.UnitPrice = &n
		}
		records = append(records, r)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeLines is lenient: anything that is not a JSON array reads as an empty
// cart, and entries that do not describe a valid line are dropped.
func decodeLines(raw string) []domain.CartLine {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// Not an array of objects. Still accept arrays with junk elements.
		var loose []json.RawMessage
		if json.Unmarshal([]byte(raw), &loose) != nil {
			return []domain.CartLine{}
		}
		entries = entries[:0]
		for _, item := range loose {
			var m map[string]json.RawMessage
			if json.Unmarshal(item, &m) == nil {
				entries = append(entries, m)
			}
		}
	}

	lines := make([]domain.CartLine, 0, len(entries))
	for _, e := range entries {
		if line, ok := decodeLine(e); ok {
			lines = append(lines, line)
		}
	}
	return normalize(lines)
}

func decodeLine(e map[string]json.RawMessage) (domain.CartLine, bool) {
	pid, ok := wholeNumber(e["productId"])
	if !ok || pid <= 0 {
		return domain.CartLine{}, false
	}
	qty, ok := wholeNumber(e["quantity"])
	if !ok || qty <= 0 || qty > math.MaxInt32 {
		return domain.CartLine{}, false
	}
	line := domain.CartLine{ProductID: pid, Quantity: int(qty)}

	if raw, present := e["unitPrice"]; present && !isNull(raw) {
		price, ok := parseDecimal(raw)
		if !ok || price.IsNegative() {
			return domain.CartLine{}, false
		}
		line.UnitPriceOverride = &price
	}
	if raw, present := e["campaignId"]; present && !isNull(raw) {
		id, ok := wholeNumber(raw)
		if !ok || id <= 0 {
			return domain.CartLine{}, false
		}
		line.CampaignID = &id
	}
	if raw, present := e["campaignTitle"]; present {
		var title string
		if json.Unmarshal(raw, &title) == nil {
			line.CampaignTitle = title
		}
	}
	return line, true
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}

// numberText accepts a JSON number or a string holding one.
func numberText(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	return "", false
}

func wholeNumber(raw json.RawMessage) (int64, bool) {
	text, ok := numberText(raw)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return 0, false
	}
	return int64(f), true
}

func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	text, ok := numberText(raw)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
