package models

import (
	"strings"
)

// Role 用户角色，决定可访问的视图和API
type Role string

const (
	RoleReporter  Role = "REPORTER"
	RoleResponder Role = "RESPONDER"
	RoleAdmin     Role = "ADMIN"
)

// AllRoles lists every role the backend can assign.
var AllRoles = []Role{RoleReporter, RoleResponder, RoleAdmin}

// ParseRole normalizes a raw claim or form value into a Role.
// Spring style authorities ("ROLE_ADMIN") and lowercase values are accepted.
func ParseRole(raw string) (Role, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "ROLE_")
	for _, r := range AllRoles {
		if string(r) == v {
			return r, true
		}
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.In(AllRoles)
}

// In reports whether r is contained in roles.
func (r Role) In(roles []Role) bool {
	for _, candidate := range roles {
		if candidate == r {
			return true
		}
	}
	return false
}

// User 服务端用户，客户端只读
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt Timestamp `json:"createdAt"`
}

// UserLoginRequest 登录请求
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login form before it is submitted.
func (r UserLoginRequest) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(r.Email) == "" {
		errs = errs.Add("email", "email is required")
	}
	if r.Password == "" {
		errs = errs.Add("password", "password is required")
	}
	return errs.OrNil()
}

// UserLoginResponse 登录响应 (POST /auth/login)
type UserLoginResponse struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
}

// UserRegisterRequest 注册请求
type UserRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Validate checks the registration form. Admin accounts cannot be
// self-registered, so only REPORTER and RESPONDER are accepted.
func (r UserRegisterRequest) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(r.Name) == "" {
		errs = errs.Add("name", "name is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		errs = errs.Add("email", "email is required")
	} else if !strings.Contains(r.Email, "@") {
		errs = errs.Add("email", "email is invalid")
	}
	if r.Password == "" {
		errs = errs.Add("password", "password is required")
	}
	switch role, _ := ParseRole(string(r.Role)); role {
	case RoleReporter, RoleResponder:
	case RoleAdmin:
		errs = errs.Add("role", "admin accounts cannot be self-registered")
	default:
		errs = errs.Add("role", "role must be REPORTER or RESPONDER")
	}
	return errs.OrNil()
}
