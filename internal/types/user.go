package types

import (
	"errors"
	"time"
)

type Role string

const (
	RoleCustomer        Role = "CUSTOMER"
	RoleAdmin           Role = "ADMIN"
	RoleSuperAdmin      Role = "SUPER_ADMIN"
	RoleMasterAdmin     Role = "MASTER_ADMIN"
	RoleServiceEngineer Role = "SERVICE_ENGINEER"
)

// IsAdmin reports whether the role may sign in to the admin portal.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin, RoleMasterAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	StatusPending   UserStatus = "PENDING"
	StatusActive    UserStatus = "ACTIVE"
	StatusSuspended UserStatus = "SUSPENDED"
)

// Geography references the city-corporation hierarchy a user belongs to.
type Geography struct {
	CityCorporationCode *string `json:"cityCorporationCode,omitempty" example:"DSCC"`
	ThanaID             *int64  `json:"thanaId,omitempty" example:"12"`
	Ward                *int    `json:"ward,omitempty" example:"7"`
	Zone                *int    `json:"zone,omitempty" example:"2"`
}

// IsEmpty is true when no geography field was supplied.
func (g Geography) IsEmpty() bool {
	return g.CityCorporationCode == nil && g.ThanaID == nil && g.Ward == nil && g.Zone == nil
}

// UserProfile is the password-free projection of a user. It is safe to cache
// and to return to callers.
type UserProfile struct {
	ID            int64      `json:"id" example:"42"`
	Email         *string    `json:"email,omitempty" example:"rahim@example.com"`
	Phone         string     `json:"phone" example:"01712345678"`
	FirstName     string     `json:"firstName" example:"Rahim"`
	LastName      string     `json:"lastName" example:"Uddin"`
	Role          Role       `json:"role" example:"CUSTOMER"`
	Status        UserStatus `json:"status" example:"ACTIVE"`
	EmailVerified bool       `json:"emailVerified"`
	PhoneVerified bool       `json:"phoneVerified"`
	Geography
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// EmailAddress returns the email or "" when the user registered without one.
func (u *UserProfile) EmailAddress() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}

var errCredentialSerialization = errors.New("credential records must not be serialized")

// CredentialRecord carries the password hash. It is fetched from the store for
// every comparison and never cached or serialized.
type CredentialRecord struct {
	UserID       int64
	PasswordHash string
}

// MarshalJSON always fails so a credential can never leak into a response body.
func (CredentialRecord) MarshalJSON() ([]byte, error) {
	return nil, errCredentialSerialization
}
