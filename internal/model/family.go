package model

import "time"

type Family struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Member struct {
	ID           string    `json:"id"`
	FamilyID     string    `json:"familyId"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar"`
	IsParent     bool      `json:"isParent"`
	WeeklyPoints int       `json:"weeklyPoints"`
	TotalPoints  int       `json:"totalPoints"`
	Streak       int       `json:"streak"`
	CreatedAt    time.Time `json:"createdAt"`
}
