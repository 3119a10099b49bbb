package webui

import (
	"time"
)

// Message types pushed to WebSocket subscribers.
const (
	MessageTypeProgress      = "progress"
	MessageTypeSceneUpdated  = "scene_updated"
	MessageTypeStoryReplaced = "story_replaced"
	MessageTypeError         = "error"
)

// WSMessage is the envelope of every WebSocket message.
type WSMessage struct {
	Type      string    `json:"type"`
	SessionID string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewWSMessage stamps a message for one session.
func NewWSMessage(sessionID, msgType string, data any) WSMessage {
	return WSMessage{
		Type:      msgType,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ProgressData reports one finished scene of a batch.
type ProgressData struct {
	Completed int         `json:"completed"`
	Total     int         `json:"total"`
	Outcome   OutcomeJSON `json:"outcome"`
}

// SceneUpdatedData carries a scene whose prompt or image changed.
type SceneUpdatedData struct {
	Scene   SceneJSON    `json:"scene"`
	Outcome *OutcomeJSON `json:"outcome,omitempty"`
}

// StoryReplacedData announces a new synthesis.
type StoryReplacedData struct {
	Scenes []SceneJSON `json:"scenes"`
}

// ErrorData is an error pushed outside a request.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
