package scanning

import (
	"encoding/json"
	"fmt"
)

// transcribePrompt is the stage 1 instruction: transcribe, do not interpret.
const transcribePrompt = `You are reading a photo of a store receipt. Transcribe ALL visible text from the image into plain text. Do not interpret, summarize, or restructure anything.

Rules:
- Preserve the line order exactly as printed on the receipt.
- Preserve column-like structure: if the receipt has quantity, price, and amount columns, keep those values on the same line as the item they belong to.
- Preserve grouping cues: if several lines are listed under a single priced line (for example a "Plate" or "Combo" with one price followed by its component dishes), keep them as consecutive lines in the same order so the grouping stays visible.
- Include the store or merchant name, any date, and the subtotal/tax/total lines.
- If part of the receipt is unreadable, transcribe what you can and skip the rest.

Return only the transcribed text. Do not add commentary, markdown, or explanations.`

// structureInstructions is the stage 2 rule set. The output schema is
// appended at call time so prompt and validator cannot drift apart.
const structureInstructions = `You are given the raw transcribed text of a store receipt. Convert it into structured JSON describing the purchase.

Extraction rules:
1. Identify each purchased line item. Distinguish items that carry their own price from items that are components of a single bundled price. A bundle (e.g. "1 Plate $9.10" followed by "CHOW MEIN" and "BROCCOLI BEEF" with no prices of their own) must become ONE item whose name combines the bundle label and its components (e.g. "Plate - Chow Mein, Broccoli Beef") priced at the bundle price. Never emit separate zero-priced items for bundle components unless the text shows an explicit price for them.
2. For each item determine quantity (use 1 if not stated), unit price, and the line total. When the receipt prints an explicit per-line amount, prefer it as the line total over quantity times unit price.
3. Set "brand" to the brand name when the text states one, otherwise the empty string.
4. Set "category" to a short free-form category (e.g. "Groceries", "Dining", "Household"). Use "Uncategorized" when you cannot tell.
5. Extract the store name and the grand total of the receipt.
6. Before answering, sum your line totals and compare against the grand total. If they diverge beyond plausible rounding or tax, re-examine the itemization: merge wrongly split bundles and fix misattributed prices, then answer.

Return ONLY a single JSON object matching this JSON Schema. No markdown code blocks, no text before or after the JSON.`

// structurePrompt builds the full stage 2 prompt for a transcription.
func structurePrompt(rawText string) string {
	schema, err := json.MarshalIndent(receiptSchema(), "", "  ")
	if err != nil {
		// The schema is a static literal, marshaling cannot fail.
		panic(err)
	}
	return fmt.Sprintf("%s\n\nSchema:\n%s\n\nReceipt text:\n%s", structureInstructions, schema, rawText)
}

// CategorySuggestionPrompt asks for a single category label for an item name.
func CategorySuggestionPrompt(itemName string) string {
	return fmt.Sprintf(`Suggest a single spending category for the purchased item %q. Answer with one short category label only (e.g. Groceries, Dining, Household, Transport, Health, Entertainment). No punctuation, no explanation. If you cannot tell, answer Uncategorized.`, itemName)
}

// ShoppingSuggestionPrompt asks for shopping list suggestions based on what
// the user recently bought.
func ShoppingSuggestionPrompt(recentPurchases []string, limit int) string {
	var history string
	for _, name := range recentPurchases {
		history += "- " + name + "\n"
	}
	if history == "" {
		history = "(no purchase history)\n"
	}
	return fmt.Sprintf(`A user tracks their grocery spending. Based on what they bought recently, suggest up to %d items they may need to buy again soon.

Recent purchases:
%s
Answer with one item name per line, nothing else. Do not repeat the same item twice. Do not number the lines.`, limit, history)
}
