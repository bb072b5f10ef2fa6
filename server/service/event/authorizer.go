package event

import (
	"context"

	"github.com/google/uuid"

	"github.com/meetwhenah/meetwhenah/internal/apperr"
	"github.com/meetwhenah/meetwhenah/store"
)

// Authorizer answers the three questions the boundary asks before letting an
// operation through: who is this chat identity, did they create the event,
// are they a member. Read-only.
type Authorizer struct {
	store Store
}

func NewAuthorizer(s Store) *Authorizer {
	return &Authorizer{store: s}
}

// IdentityFor resolves a chat identity to its user row.
func (a *Authorizer) IdentityFor(ctx context.Context, chatIdentity string) (*store.User, error) {
	user, err := a.store.GetUser(ctx, &store.FindUser{ChatIdentity: &chatIdentity})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "unknown chat identity")
	}
	return user, nil
}

// IsCreator reports whether userID created the event.
func (a *Authorizer) IsCreator(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	event, err := a.store.GetEvent(ctx, &store.FindEvent{ID: &eventID})
	if err != nil {
		return false, err
	}
	if event == nil {
		return false, apperr.New(apperr.NotFound, "event %s not found", eventID)
	}
	return event.CreatorID == userID, nil
}

// IsMember reports whether userID holds a membership row for the event.
func (a *Authorizer) IsMember(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	members, err := a.store.ListMembers(ctx, eventID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}
