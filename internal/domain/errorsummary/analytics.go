package errorsummary

import (
	"strconv"

	model "github.com/okian/mapcheck/internal/domain/model"
)

// EventBannerViewed is recorded when an event with processing errors is shown.
const EventBannerViewed = "issue_error_banner.viewed"

// BannerViewedProps builds the analytics payload for an event's errors. It
// returns false when the event has none.
func BannerViewedProps(orgID, platform string, event *model.Event) (map[string]any, bool) {
	if event == nil || len(event.Errors) == 0 {
		return nil, false
	}

	types := make([]string, 0, len(event.Errors))
	messages := make([]string, 0, len(event.Errors))
	for _, e := range event.Errors {
		types = append(types, e.Type)
		messages = append(messages, e.Message)
	}

	props := map[string]any{
		"org_id":        parseOrgID(orgID),
		"group":         event.GroupID,
		"error_type":    types,
		"error_message": messages,
	}
	if platform != "" {
		props["platform"] = platform
	}
	return props, true
}

// parseOrgID reads the leading decimal digits of id. It returns nil when there
// are none.
func parseOrgID(id string) any {
	end := 0
	for end < len(id) && id[end] >= '0' && id[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.ParseInt(id[:end], 10, 64)
	if err != nil {
		return nil
	}
	return n
}
