package model

import "time"

type WeeklyChampion struct {
	MemberID     string    `json:"memberId"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar"`
	WeeklyPoints int       `json:"weeklyPoints"`
	WeekEnding   time.Time `json:"weekEnding"`
}

// WeeklyState tracks the last week a family was rolled over and who won it.
type WeeklyState struct {
	FamilyID  string          `json:"familyId"`
	WeekKey   string          `json:"weekKey"`
	Champion  *WeeklyChampion `json:"champion"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
