package chat

import "time"

// Session identifies one widget instance and the profile it was opened with.
type Session struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	CreatedAt time.Time `json:"createdAt"`
}
