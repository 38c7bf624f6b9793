package model

import "time"

// Session is a bearer token issued at signup or login. Only the token hash is stored.
type Session struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"memberId"`
	FamilyID  string    `json:"familyId"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
