package model

import (
	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// LoginRequest identifies a caller by role. Patients and doctors log in by id,
// the admin by passcode.
type LoginRequest struct {
	Role     Role   `json:"role" binding:"required,oneof=patient doctor admin"`
	ID       int64  `json:"id" binding:"required_unless=Role admin"`
	Passcode string `json:"passcode" binding:"required_if=Role admin"`
}

type RegisterRequest = CreatePatientRequest

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Role        Role   `json:"role"`
	SubjectID   int64  `json:"subject_id"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	Role      Role  `json:"role"`
	SubjectID int64 `json:"sid"`
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Role Role
	ID   int64
}
