package events

import "time"

// Event names double as AMQP routing keys.
const (
	NameUserCreated    = "user.created"
	NameUserUpdated    = "user.updated"
	NameUserDeleted    = "user.deleted"
	NameProfileDeleted = "profile.deleted"
)

// Event is a domain event published on the Bus.
type Event interface {
	Name() string
}

// UserCreated is published after the create saga completes.
type UserCreated struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Roles      []string  `json:"roles"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (UserCreated) Name() string { return NameUserCreated }

// UserUpdated is published after the update saga completes.
type UserUpdated struct {
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (UserUpdated) Name() string { return NameUserUpdated }

// UserDeleted is published once both stores dropped the user.
type UserDeleted struct {
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (UserDeleted) Name() string { return NameUserDeleted }

// ProfileDeleted carries the owning user's identity id.
type ProfileDeleted struct {
	UserID     string    `json:"user_id"`
	ProfileID  uint      `json:"profile_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (ProfileDeleted) Name() string { return NameProfileDeleted }
