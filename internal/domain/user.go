package domain

import "regexp"

// UserStatus gates whether a user may authenticate.
type UserStatus string

const (
	UserActive   UserStatus = "ACTIVE"
	UserLocked   UserStatus = "LOCKED"
	UserDisabled UserStatus = "DISABLED"
	UserDeleted  UserStatus = "DELETED"
)

// User is the read-only identity record the core authenticates against.
// It is supplied exclusively through UserAccountGateway; the core never
// writes to it.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Status       UserStatus
	Roles        []Role
	Scopes       []Scope
}

var roleNamePattern = regexp.MustCompile(`^ROLE_[A-Z0-9_]+$`)

// Role groups a set of scopes under a conventionally-named identifier.
type Role struct {
	Name   string
	Scopes []Scope
}

// ValidRoleName reports whether name matches ^ROLE_[A-Z0-9_]+$.
func ValidRoleName(name string) bool {
	return roleNamePattern.MatchString(name)
}

var scopePattern = regexp.MustCompile(`^[a-z0-9_-]+:[a-z0-9_-]+$`)

// Scope is a fine-grained resource:action permission, always normalized
// to lowercase.
type Scope string

// ValidScope reports whether s matches ^[a-z0-9_-]+:[a-z0-9_-]+$.
func ValidScope(s Scope) bool {
	return scopePattern.MatchString(string(s))
}
