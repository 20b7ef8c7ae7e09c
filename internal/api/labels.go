package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Label is a classification label as the backend defines it.
type Label struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Category    struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"category"`
}

// ThreadLabel is a label applied to a thread, either suggested by the
// classifier or confirmed by the user.
type ThreadLabel struct {
	ID         int    `json:"id"`
	ThreadID   string `json:"thread_id"`
	LabelID    int    `json:"label_id"`
	Confidence int    `json:"confidence"`
	Confirmed  bool   `json:"is_confirmed"`
	Label      Label  `json:"label"`
}

// Name returns the label's name, falling back to its id.
func (tl ThreadLabel) Name() string {
	if tl.Label.Name != "" {
		return tl.Label.Name
	}
	return "#" + strconv.Itoa(tl.LabelID)
}

// ThreadLabels lists the labels applied to a thread.
func (c *Client) ThreadLabels(ctx context.Context, threadID string) ([]ThreadLabel, error) {
	data, err := c.get(ctx, "/api/labels/thread/"+url.PathEscape(threadID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread labels: %w", err)
	}
	var labels []ThreadLabel
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to decode thread labels: %w", &ParseError{What: "thread labels", Err: err})
	}
	return labels, nil
}

// ConfirmLabel marks a suggested label on a thread as correct. A label the
// thread does not carry yields an error matching ErrNotFound.
func (c *Client) ConfirmLabel(ctx context.Context, threadID string, labelID int) error {
	path := "/api/labels/thread/" + url.PathEscape(threadID) + "/confirm/" + strconv.Itoa(labelID)
	if _, err := c.post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("failed to confirm label %d: %w", labelID, err)
	}
	return nil
}
