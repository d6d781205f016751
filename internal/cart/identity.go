package cart

import (
	"fmt"

	"github.com/google/uuid"
)

// Identity names a cart's owner explicitly: a signed-in user or a guest
// session, never inferred from ambient state. The zero Identity is
// invalid and rejected by every cart operation.
type Identity struct {
	userID    *uuid.UUID
	sessionID *string
}

// User builds the identity of a signed-in customer.
func User(id uuid.UUID) Identity {
	return Identity{userID: &id}
}

// Guest builds the identity of an anonymous session.
func Guest(sessionID string) Identity {
	return Identity{sessionID: &sessionID}
}

// IsZero reports whether no identity was provided.
func (i Identity) IsZero() bool {
	return i.userID == nil && (i.sessionID == nil || *i.sessionID == "")
}

// IsUser reports whether the identity is a signed-in customer.
func (i Identity) IsUser() bool {
	return i.userID != nil
}

// UserID returns the user id when the identity is a user.
func (i Identity) UserID() (uuid.UUID, bool) {
	if i.userID == nil {
		return uuid.Nil, false
	}
	return *i.userID, true
}

// SessionID returns the session id when the identity is a guest.
func (i Identity) SessionID() (string, bool) {
	if i.userID != nil || i.sessionID == nil {
		return "", false
	}
	return *i.sessionID, true
}

// UserRef returns the user id as a nullable reference for persistence.
func (i Identity) UserRef() *uuid.UUID {
	if i.userID == nil {
		return nil
	}
	id := *i.userID
	return &id
}

// SessionRef returns the session id as a nullable reference for persistence.
func (i Identity) SessionRef() *string {
	if i.userID != nil || i.sessionID == nil {
		return nil
	}
	sid := *i.sessionID
	return &sid
}

// String renders the identity for logs.
func (i Identity) String() string {
	if i.userID != nil {
		return fmt.Sprintf("user:%s", i.userID)
	}
	if i.sessionID != nil {
		return fmt.Sprintf("guest:%s", *i.sessionID)
	}
	return "anonymous"
}
