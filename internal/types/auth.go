package types

import (
	"time"

	"github.com/google/uuid"
)

// NewUser is everything the store needs to insert a user row.
type NewUser struct {
	FirstName     string
	LastName      string
	Phone         string
	Email         *string
	PasswordHash  string
	Role          Role
	Status        UserStatus
	EmailVerified bool
	Geography
}

// VerificationToken pairs the OTP with the legacy link token; both live in one row.
type VerificationToken struct {
	ID        uuid.UUID
	Token     string
	Code      string
	UserID    int64
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

type RefreshToken struct {
	ID        uuid.UUID
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

type PasswordResetToken struct {
	ID        uuid.UUID
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// Response is the envelope for plain success or failure messages.
type Response struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Operation successful"`
}
