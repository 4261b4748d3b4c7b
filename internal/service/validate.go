package service

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kdduha/bill-parser/internal/models"
)

// stripCodeFence removes a surrounding ```json ... ``` block if the model
// added one despite the prompt.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// validateBill checks that text decodes as a models.Bill and returns the
// fence-free text unchanged otherwise.
func validateBill(text string) (string, error) {
	text = stripCodeFence(text)

	var bill models.Bill
	if err := sonic.UnmarshalString(text, &bill); err != nil {
		return "", fmt.Errorf("model returned invalid receipt JSON: %w", err)
	}
	return text, nil
}
