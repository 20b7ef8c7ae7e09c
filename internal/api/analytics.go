package api

import (
	"context"
	"encoding/json"
	"fmt"
)

type SenderCount struct {
	Email string `json:"email"`
	Count int    `json:"count"`
}

// Summary is the backend's mailbox analytics.
type Summary struct {
	TotalEmails     int            `json:"total_emails"`
	UnreadEmails    int            `json:"unread_emails"`
	WeeklyChange    float64        `json:"weekly_change"`
	TopSenders      []SenderCount  `json:"top_senders"`
	EmailCategories map[string]int `json:"email_categories"`
}

func (c *Client) AnalyticsSummary(ctx context.Context) (Summary, error) {
	data, err := c.get(ctx, "/api/analytics/summary", nil)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get analytics summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("failed to decode analytics summary: %w", &ParseError{What: "analytics summary", Err: err})
	}
	return s, nil
}
