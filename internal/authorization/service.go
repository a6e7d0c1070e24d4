package authorization

import "context"

// Service decides whether an actor holding role may perform action on object.
type Service interface {
	Authorize(ctx context.Context, actorID, role, object, action string) error
}
