package models

// Book event operations.
const (
	OperationCreated    = "created"
	OperationUpdated    = "updated"
	OperationDeleted    = "deleted"
	OperationDownloaded = "downloaded"
)

// BookEvent describes a change to a book, published to Kafka.
type BookEvent struct {
	EventID   string `json:"event_id"`  // EventID is a unique identifier for the event.
	Timestamp int64  `json:"timestamp"` // Timestamp is the Unix time (seconds) of the change.
	BookID    string `json:"book_id"`   // BookID is the affected book.
	UserID    string `json:"user_id"`   // UserID is the acting user.
	Operation string `json:"operation"` // Operation is one of the Operation* constants.
}
