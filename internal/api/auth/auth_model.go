package auth

import (
	"strings"

	"github.com/FACorreiaa/go-complaint-auth/internal/phone"
	"github.com/FACorreiaa/go-complaint-auth/internal/types"
)

// Portal discriminators accepted by Login.
const (
	PortalAdmin = "ADMIN"
	PortalApp   = "APP"
)

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	FirstName           string  `json:"firstName" validate:"required,min=1,max=50" example:"Rahim"`
	LastName            string  `json:"lastName" validate:"required,min=1,max=50" example:"Uddin"`
	Phone               string  `json:"phone" validate:"required,bdphone" example:"01712345678"`
	Email               string  `json:"email,omitempty" validate:"omitempty,email,max=255" example:"rahim@example.com"`
	Password            string  `json:"password" validate:"required,min=8,max=72" example:"Secret123!"`
	CityCorporationCode *string `json:"cityCorporationCode,omitempty" validate:"omitempty,min=1,max=20" example:"DSCC"`
	ThanaID             *int64  `json:"thanaId,omitempty" validate:"omitempty,gt=0" example:"12"`
	Ward                *int    `json:"ward,omitempty" validate:"omitempty,gt=0" example:"7"`
	Zone                *int    `json:"zone,omitempty" validate:"omitempty,gt=0" example:"2"`
}

// Geography returns the optional geography references of the request.
func (r RegisterRequest) Geography() types.Geography {
	return types.Geography{
		CityCorporationCode: r.CityCorporationCode,
		ThanaID:             r.ThanaID,
		Ward:                r.Ward,
		Zone:                r.Zone,
	}
}

// LoginRequest represents the login request body. Exactly one of email and
// phone is accepted.
type LoginRequest struct {
	Email    string `json:"email,omitempty" validate:"required_without=Phone,omitempty,email" example:"rahim@example.com"`
	Phone    string `json:"phone,omitempty" validate:"required_without=Email,excluded_with=Email,omitempty,bdphone" example:"01712345678"`
	Password string `json:"password" validate:"required" example:"Secret123!"`
	Portal   string `json:"portal,omitempty" validate:"omitempty,oneof=ADMIN APP" example:"APP"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"rahim@example.com"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

// VerifyEmailRequest verifies an account with the OTP sent at registration.
type VerifyEmailRequest struct {
	Email string `json:"email,omitempty" validate:"required_without=Phone,omitempty,email" example:"rahim@example.com"`
	Phone string `json:"phone,omitempty" validate:"required_without=Email,excluded_with=Email,omitempty,bdphone" example:"01712345678"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=10" example:"482913"`
}

type ResendVerificationRequest struct {
	Email string `json:"email,omitempty" validate:"required_without=Phone,omitempty,email" example:"rahim@example.com"`
	Phone string `json:"phone,omitempty" validate:"required_without=Email,excluded_with=Email,omitempty,bdphone" example:"01712345678"`
}

// Identifier names a user by email or phone. Phone is kept in canonical form.
type Identifier struct {
	Email string
	Phone string
}

// NewIdentifier normalizes the raw values. Email wins when both are set.
func NewIdentifier(email, rawPhone string) Identifier {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		return Identifier{Email: email}
	}
	return Identifier{Phone: phone.Normalize(rawPhone)}
}

func (i Identifier) IsZero() bool { return i.Email == "" && i.Phone == "" }

// CacheKey is the profile cache key for the identifier.
func (i Identifier) CacheKey() string {
	if i.Email != "" {
		return "email:" + i.Email
	}
	return "phone:" + i.Phone
}

// RegisterResult is returned by a successful registration. No tokens are issued.
type RegisterResult struct {
	Success              bool   `json:"success" example:"true"`
	Message              string `json:"message" example:"Registration successful. Please verify your account."`
	RequiresVerification bool   `json:"requiresVerification" example:"true"`
}

// TokenPair is the result of Login and Refresh. Expiry values are in seconds.
type TokenPair struct {
	AccessToken      string             `json:"accessToken"`
	RefreshToken     string             `json:"refreshToken"`
	AccessExpiresIn  int64              `json:"accessExpiresIn" example:"900"`
	RefreshExpiresIn int64              `json:"refreshExpiresIn" example:"604800"`
	User             *types.UserProfile `json:"user,omitempty"`
}

// TokenResponse is the HTTP envelope around a TokenPair.
type TokenResponse struct {
	Success bool `json:"success" example:"true"`
	TokenPair
}

// ProfileResponse wraps the authenticated user's profile.
type ProfileResponse struct {
	Success bool               `json:"success" example:"true"`
	User    *types.UserProfile `json:"user"`
}
