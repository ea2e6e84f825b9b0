package arm

import (
	"context"
	"fmt"
	"net/url"
)

const activityLogAPIVersion = "2015-04-01"

// ActivityLookup returns a poller detail lookup that reads the activity log
// entries of a correlation id.
func ActivityLookup(c *Client) func(ctx context.Context, correlationID string) ([]string, error) {
	return func(ctx context.Context, correlationID string) ([]string, error) {
		path := c.SubscriptionPath("providers", "microsoft.insights", "eventtypes", "management", "values") +
			"?$filter=" + url.QueryEscape(fmt.Sprintf("correlationId eq '%s'", correlationID))
		resp, err := c.http.Do(ctx, "GET", path, query(activityLogAPIVersion), nil)
		if err != nil {
			return nil, err
		}
		var page struct {
			Value []struct {
				OperationName struct {
					LocalizedValue string `json:"localizedValue"`
				} `json:"operationName"`
				Status struct {
					LocalizedValue string `json:"localizedValue"`
				} `json:"status"`
				ResourceID string `json:"resourceId"`
			} `json:"value"`
		}
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(page.Value))
		for _, v := range page.Value {
			out = append(out, fmt.Sprintf("%s: %s (%s)", v.OperationName.LocalizedValue, v.Status.LocalizedValue, v.ResourceID))
		}
		return out, nil
	}
}
