package models

// Identity describes the authenticated caller of an API operation
type Identity struct {
	Subject string   `json:"subject"`
	Email   string   `json:"email,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

// Anonymous is the identity assigned when authentication is disabled
var Anonymous = Identity{Subject: "anonymous"}

// HasRole returns true if the identity carries the named role
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}
