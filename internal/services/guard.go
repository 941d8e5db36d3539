package services

import (
	"context"

	"billtracker/internal/auth"
	"billtracker/internal/core"
)

// callerID returns the authenticated owner id from ctx.
func callerID(ctx context.Context) (string, error) {
	id := auth.UserID(ctx)
	if id == "" {
		return "", core.ErrUnauthenticated
	}
	return id, nil
}

func checkOwner(caller, owner string) error {
	if caller != owner {
		return core.ErrForbidden
	}
	return nil
}
