package types

// Status is the lifecycle status shared by persisted entities
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Validate() bool {
	switch s {
	case StatusActive, StatusArchived, StatusDeleted:
		return true
	}
	return false
}
