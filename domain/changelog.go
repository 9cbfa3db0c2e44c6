package domain

// ChangeLogEntry is one append-only audit record for a single changed
// field. Old and new values are stored human-readable ("checked",
// "unchecked", "Not set").
type ChangeLogEntry struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	UserRole  UserRole `json:"userRole"`
	UserName  string   `json:"userName,omitempty"`
	BoardID   string   `json:"boardId"`
	BoardName string   `json:"boardName"`
	Revision  string   `json:"revision"`
	Stage     string   `json:"stage"`
	Task      string   `json:"task"`
	Field     string   `json:"field"`
	OldValue  string   `json:"oldValue"`
	NewValue  string   `json:"newValue"`
}

// Board event types published to the events queue.
const (
	EventBoardCreated = "board-created"
	EventBoardUpdated = "board-updated"
	EventBoardDeleted = "board-deleted"
)

// BoardEvent notifies downstream consumers that a board changed. Delivery
// is best-effort; consumers re-read the board from storage.
type BoardEvent struct {
	Type      string `json:"type"`
	BoardID   string `json:"boardId"`
	Timestamp int64  `json:"timestamp"`
}
