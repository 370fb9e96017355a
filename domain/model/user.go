package model

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleApprover   UserRole = "approver"
	RoleDispatcher UserRole = "dispatcher"
	RoleUser       UserRole = "user"
)

// CanReview returns true for roles allowed to approve or reject access requests
func (r UserRole) CanReview() bool {
	return r == RoleAdmin || r == RoleApprover
}

// Identity is the requester as parsed from the bearer token
type Identity struct {
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// Credentials carries the bearer token and the identity it was issued for.
// They are read fresh at the start of every operation and never cached.
type Credentials struct {
	Token    string    `json:"-"`
	Identity *Identity `json:"identity,omitempty"`
}

// Valid requires both a token and a parsed username
func (c Credentials) Valid() bool {
	return c.Token != "" && c.Identity != nil && c.Identity.Username != ""
}

// Username returns the parsed username, empty when credentials are absent
func (c Credentials) Username() string {
	if c.Identity == nil {
		return ""
	}
	return c.Identity.Username
}
