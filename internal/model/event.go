package model

import "encoding/json"

// Event is one record from a repository's public activity feed,
// shaped like the GitHub repo events API.
type Event struct {
	ID string `json:"id"`

	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Repo      struct {
		Name string `json:"name"`
	} `json:"repo"`
	Actor struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	} `json:"actor"`
}

// DecodeEvents decodes a JSON array of events element by element. Elements
// that fail to decode on their own are skipped, so one bad record never
// discards the rest. A body that is not a JSON array at all is an error.
func DecodeEvents(data []byte) ([]Event, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal(r, &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
