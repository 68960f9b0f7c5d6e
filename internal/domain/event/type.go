package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestCreated      Type = "request.created"
	TypeRequestUpdated      Type = "request.updated"
	TypeRequestTransitioned Type = "request.transitioned"
	TypeRequestCommented    Type = "request.commented"
	TypeRequestDeleted      Type = "request.deleted"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestCreated,
		TypeRequestUpdated,
		TypeRequestTransitioned,
		TypeRequestCommented,
		TypeRequestDeleted:
		return true
	default:
		return false
	}
}

// Payload keys shared by publishers and handlers
const (
	KeyFromStatus = "from_status"
	KeyToStatus   = "to_status"
	KeyComment    = "comment"
	KeyAuthorID   = "author_id"
	KeyAuthorName = "author_name"
)
