// Package intent implements keyword-based recognition of service-request
// intents ("bookings") in free-form message text.
package intent

import (
	"strings"

	"github.com/replyflow/replyflow/internal/models"
)

// Detect returns the first enabled booking type whose keywords match the
// message text, or nil when nothing matches. Types are evaluated in their
// stored order and keywords as case-insensitive substrings, so at most one
// type matches per message. Detection is a pure function of its inputs.
func Detect(text string, types []models.BookingType) *models.BookingType {
	lowered := strings.ToLower(text)
	for i := range types {
		t := &types[i]
		if !t.Enabled {
			continue
		}
		for _, keyword := range t.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			if strings.Contains(lowered, keyword) {
				match := *t
				return &match
			}
		}
	}
	return nil
}
