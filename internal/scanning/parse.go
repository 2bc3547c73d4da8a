package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

// parseStructuredReceipt validates and parses the structurer's JSON response.
// Responses that deviate from the schema fail here rather than propagating
// partially populated receipts.
func parseStructuredReceipt(text string) (*StructuredReceipt, error) {
	text = extractJSON(text)
	if text == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	if err := validateAgainstSchema(receiptSchema(), []byte(text)); err != nil {
		return nil, err
	}

	var receipt StructuredReceipt
	if err := json.Unmarshal([]byte(text), &receipt); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	receipt.StoreName = strings.TrimSpace(receipt.StoreName)
	if receipt.StoreName == "" {
		receipt.StoreName = "Unknown Store"
	}

	for i := range receipt.Items {
		item := &receipt.Items[i]
		item.Name = strings.TrimSpace(item.Name)
		item.Brand = strings.TrimSpace(item.Brand)
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if strings.TrimSpace(item.Category) == "" {
			item.Category = DefaultCategory
		}
		// The explicit per-line amount wins; only derive the unit price
		// from it when the model left the unit price out.
		if item.UnitPrice == 0 && item.TotalItemPrice != 0 {
			item.UnitPrice = item.TotalItemPrice / item.Quantity
		}
	}

	return &receipt, nil
}

// extractJSON strips markdown code fences and returns the outermost JSON
// object in text, or an empty string when none is present.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return ""
	}
	return text[startIdx : endIdx+1]
}

// validateAgainstSchema validates data against a JSON-Schema given as a
// generic map.
func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("receipt.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("adding schema resource: %w", err)
	}
	schema, err := compiler.Compile("receipt.json")
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}

// totalsTolerance is the slack allowed between summed line totals and the
// stated grand total: 2% of the total with a 5 cent floor, covering rounding
// and small tax lines the model folded away.
var totalsToleranceFloor = decimal.NewFromFloat(0.05)

// reconcileTotals reports whether the summed line totals approximately match
// the stated grand total.
func reconcileTotals(receipt *StructuredReceipt) bool {
	sum := decimal.Zero
	for _, item := range receipt.Items {
		sum = sum.Add(decimal.NewFromFloat(item.TotalItemPrice))
	}
	total := decimal.NewFromFloat(receipt.Total)

	tolerance := total.Mul(decimal.NewFromFloat(0.02)).Abs()
	if tolerance.LessThan(totalsToleranceFloor) {
		tolerance = totalsToleranceFloor
	}
	return sum.Sub(total).Abs().LessThanOrEqual(tolerance)
}
