package domain

import "time"

// Comment is a thread entry on a ticket. Internal comments are only
// visible to employees; the flag is immutable once the comment exists.
type Comment struct {
	ID          string
	TicketID    string
	AuthorID    string
	Body        string
	Internal    bool
	Attachments []Attachment
	CreatedAt   time.Time
}
