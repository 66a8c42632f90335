// Package admin provides user management for accounts holding the ADMIN
// role: listing, inspecting, editing, deleting, and deactivating users.
// Every operation re-confirms against the database that the acting
// principal is still an active ADMIN, even though the route is already
// gated on the role carried in the token.
package admin

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// UpdateUserRequest is the body of PUT /user/update/:id. Empty fields are
// left unchanged. Role is parsed by the service so unknown names report
// invalid_role.
type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Validate checks field shapes.
func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Length(3, 255), is.Email),
	)
}
