package identity

import (
	"time"

	"github.com/google/uuid"
)

// User types recognized by the system.
const (
	UserTypeEMS      = "ems"
	UserTypeHospital = "hospital"
)

// User is an authenticated account, either an EMS crew or a hospital desk.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	UserType     string    `json:"user_type"`
	Name         string    `json:"name"`
	// HospitalID links a hospital account to its facility record.
	HospitalID *uuid.UUID `json:"hospital_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ValidUserType reports whether t is a recognized user type.
func ValidUserType(t string) bool {
	return t == UserTypeEMS || t == UserTypeHospital
}

// SignupInput is the payload for account creation.
type SignupInput struct {
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	UserType   string     `json:"user_type"`
	Name       string     `json:"name"`
	HospitalID *uuid.UUID `json:"hospital_id,omitempty"`
}

// LoginInput is the payload for authentication.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned from signup and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
