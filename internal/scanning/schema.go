package scanning

// receiptSchema returns the JSON-Schema for the structurer's output as a
// generic map. It is embedded in the stage 2 prompt as the output contract
// and used locally to validate the model's response.
func receiptSchema() map[string]any {
	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":           map[string]any{"type": "string", "minLength": 1},
			"quantity":       map[string]any{"type": "number", "exclusiveMinimum": 0},
			"unitPrice":      map[string]any{"type": "number"},
			"totalItemPrice": map[string]any{"type": "number"},
			"brand":          map[string]any{"type": "string"},
			"category":       map[string]any{"type": "string"},
		},
		"required": []string{"name", "totalItemPrice"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"storeName": map[string]any{"type": "string"},
			"total":     map[string]any{"type": "number", "minimum": 0},
			"items":     map[string]any{"type": "array", "items": lineItem},
		},
		"required": []string{"storeName", "total", "items"},
	}
}
