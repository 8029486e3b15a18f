package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	TeacherID string   `json:"teacher_id,omitempty"`
	Role      UserRole `json:"role"`
	Email     string   `json:"email"`
	FullName  string   `json:"full_name"`
	jwt.RegisteredClaims
}

// ActorTeacherID returns the teacher identity used for offer responses.
func (c *JWTClaims) ActorTeacherID() string {
	if c == nil {
		return ""
	}
	if c.TeacherID != "" {
		return c.TeacherID
	}
	return c.UserID
}
