package applex

import "context"

// SocialProfile is the verified identity handed to a UserResolver
// after a token passes verification.
type SocialProfile struct {
	Provider      string
	SocialID      string
	Email         string
	Username      string
	EmailVerified bool
}

// User is the account a UserResolver maps a social identity onto.
type User struct {
	ID       string
	Username string
	Email    string
}

// UserResolver finds or creates the application user for a verified
// social identity. Implemented by the caller; this package only
// invokes it.
type UserResolver interface {
	FindOrCreateUser(ctx context.Context, profile SocialProfile) (*User, error)
}

// UserResolverFunc adapts a function to the UserResolver interface.
type UserResolverFunc func(ctx context.Context, profile SocialProfile) (*User, error)

// FindOrCreateUser implements UserResolver.
func (f UserResolverFunc) FindOrCreateUser(ctx context.Context, profile SocialProfile) (*User, error) {
	return f(ctx, profile)
}
