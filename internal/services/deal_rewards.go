package services

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	maxRewardSKULength    = 100
	maxRewardQuantity     = 100
	maxRewardPrice        = 999999.99
	defaultRewardQuantity = 1
)

var rewardQuantitySuffix = regexp.MustCompile(`(?i)[*x]\s*(\d+)\s*$`)

// ParseRewardSKUs parses the admin reward-SKU textarea. Entries are separated
// by newlines or commas and follow SKU[@price][*qty|xqty]. Entries whose SKU
// is empty after sanitising are dropped; order and duplicates are kept.
func ParseRewardSKUs(input string) []RewardSKU {
	entries := strings.FieldsFunc(input, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})

	out := make([]RewardSKU, 0, len(entries))
	for _, entry := range entries {
		if reward, ok := parseRewardEntry(entry); ok {
			out = append(out, reward)
		}
	}
	return out
}

func parseRewardEntry(entry string) (RewardSKU, bool) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return RewardSKU{}, false
	}

	skuPart, pricePart, hasPrice := strings.Cut(entry, "@")

	// the quantity suffix trails the price when there is one, but SKU*3@9.99
	// is accepted too
	var quantity int
	target := &skuPart
	if hasPrice && rewardQuantitySuffix.MatchString(pricePart) {
		target = &pricePart
	}
	*target, quantity = splitRewardQuantity(*target)

	sku := sanitizeRewardSKU(skuPart)
	if sku == "" {
		return RewardSKU{}, false
	}
	reward := RewardSKU{SKU: sku, Quantity: quantity}
	if hasPrice {
		if price, ok := parseRewardPrice(pricePart); ok {
			reward.PriceOverride = &price
		}
	}
	return reward, true
}

func splitRewardQuantity(s string) (string, int) {
	match := rewardQuantitySuffix.FindStringSubmatchIndex(s)
	if match == nil {
		return s, defaultRewardQuantity
	}
	digits := s[match[2]:match[3]]
	return s[:match[0]], clampRewardQuantity(digits)
}

func clampRewardQuantity(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return maxRewardQuantity
		}
		return defaultRewardQuantity
	}
	return clampQuantity(n)
}

func clampQuantity(n int) int {
	switch {
	case n < 1:
		return 1
	case n > maxRewardQuantity:
		return maxRewardQuantity
	default:
		return n
	}
}

func parseRewardPrice(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "$")
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return clampRewardPrice(value)
}

func clampRewardPrice(value float64) (float64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	if value < 0 {
		return 0, true
	}
	if value > maxRewardPrice {
		return maxRewardPrice, true
	}
	return value, true
}

func sanitizeRewardSKU(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			if b.Len() < maxRewardSKULength {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

type rewardSKURecord struct {
	SKU           string   `json:"sku"`
	Quantity      int      `json:"quantity"`
	PriceOverride *float64 `json:"priceOverride"`
}

// EncodeRewardSKUs serialises rewards for storage on the deal record.
func EncodeRewardSKUs(rewards []RewardSKU) (string, error) {
	records := make([]rewardSKURecord, 0, len(rewards))
	for _, r := range rewards {
		records = append(records, rewardSKURecord{SKU: r.SKU, Quantity: r.Quantity, PriceOverride: r.PriceOverride})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeRewardSKUs reads stored reward JSON back, applying the same
// sanitising and clamping as ParseRewardSKUs. Quantities and prices may be
// numbers or numeric strings. Malformed JSON yields an empty list.
func DecodeRewardSKUs(raw string) []RewardSKU {
	out := []RewardSKU{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out
	}

	var records []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return out
	}
	for _, record := range records {
		sku := sanitizeRewardSKU(decodeLooseString(record["sku"]))
		if sku == "" {
			continue
		}

		reward := RewardSKU{SKU: sku, Quantity: defaultRewardQuantity}
		if qty, ok := decodeLooseNumber(record["quantity"]); ok {
			reward.Quantity = clampFloatQuantity(qty)
		}
		if price, ok := decodeLooseNumber(record["priceOverride"]); ok {
			if clamped, ok := clampRewardPrice(price); ok {
				reward.PriceOverride = &clamped
			}
		}
		out = append(out, reward)
	}
	return out
}

func clampFloatQuantity(v float64) int {
	switch {
	case math.IsNaN(v) || v < 1:
		return 1
	case v > maxRewardQuantity:
		return maxRewardQuantity
	default:
		return int(v)
	}
}

func decodeLooseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func decodeLooseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
