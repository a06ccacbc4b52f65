package common

import "context"

// Caller is the authenticated principal attached to a request.
type Caller struct {
	UserID string
	Role   string
}

type callerKey struct{}

// WithCaller attaches c to ctx, replacing any caller already present.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored on ctx.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// WithUserID sets the caller's user id and keeps its role.
func WithUserID(ctx context.Context, id string) context.Context {
	c, _ := CallerFrom(ctx)
	c.UserID = id
	return WithCaller(ctx, c)
}

// UserID reports the caller's user id. ok is false for anonymous requests.
func UserID(ctx context.Context) (id string, ok bool) {
	c, _ := CallerFrom(ctx)
	return c.UserID, c.UserID != ""
}

// WithRole sets the caller's back-office role and keeps its user id.
func WithRole(ctx context.Context, role string) context.Context {
	c, _ := CallerFrom(ctx)
	c.Role = role
	return WithCaller(ctx, c)
}

// Role returns the caller's back-office role, or "".
func Role(ctx context.Context) string {
	c, _ := CallerFrom(ctx)
	return c.Role
}
