package model

import "time"

// PushSubscription is one browser's Web Push endpoint for a member.
type PushSubscription struct {
	ID         string    `json:"id"`
	MemberID   string    `json:"memberId"`
	FamilyID   string    `json:"familyId"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dhKey"`
	AuthKey    string    `json:"authKey"`
	DeviceName string    `json:"deviceName"`
	CreatedAt  time.Time `json:"createdAt"`
}
