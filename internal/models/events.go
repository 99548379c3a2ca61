package models

// Event types published for caption activity.
const (
	EventCaptionUpdated   = "caption.live.updated"
	EventCaptionAnnotated = "caption.live.annotated"
	EventCaptionCommitted = "caption.history.committed"
)

// CaptionUpdated is emitted whenever the live caption text changes.
type CaptionUpdated struct {
	EventType     string `json:"eventType"`
	CaptionID     string `json:"captionId"`
	Generation    uint64 `json:"generation"`
	Timestamp     int64  `json:"timestamp"`
	Text          string `json:"text"`
	HasAnnotation bool   `json:"hasAnnotation"`
}

// CaptionCommitted is emitted when a caption is inserted into history.
type CaptionCommitted struct {
	EventType     string `json:"eventType"`
	CaptionID     string `json:"captionId"`
	Timestamp     int64  `json:"timestamp"`
	CreatedAt     int64  `json:"createdAt"`
	Text          string `json:"text"`
	HasAnnotation bool   `json:"hasAnnotation"`
	Reason        string `json:"reason"`
}
