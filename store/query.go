package store

// InboxQuery selects an owner's messages.
type InboxQuery struct {
	// OwnerID is required.
	OwnerID string
	// UUID restricts the result to one conversation when non-empty.
	UUID string
	// Limit caps the result size. Zero means no limit.
	Limit int
	// Skip drops this many rows from the start of the ordered result.
	Skip int
}

// Paged reports whether q limits its result.
func (q InboxQuery) Paged() bool {
	return q.Limit > 0
}

// NewerFirst orders messages by timestamp descending, then by id
// descending so equal timestamps page deterministically.
func NewerFirst(a, b *Message) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}
