package history

import "time"

// Message roles. A summary row is synthesized history produced by compaction
// and always sorts before the raw messages retained alongside it.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSummary   = "summary"
)

// Message is a single persisted conversational message.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Responder string    `json:"responder,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
