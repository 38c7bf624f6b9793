package model

import "time"

type ChoreStatus string

const (
	ChoreAvailable ChoreStatus = "available"
	ChoreClaimed   ChoreStatus = "claimed"
	ChoreAssigned  ChoreStatus = "assigned"
	ChorePending   ChoreStatus = "pending"
	ChoreCompleted ChoreStatus = "completed"
)

type Chore struct {
	ID            string      `json:"id"`
	FamilyID      string      `json:"familyId"`
	Emoji         string      `json:"emoji"`
	Title         string      `json:"title"`
	Points        int         `json:"points"`
	AssignedToID  *string     `json:"assignedToId"`
	AssignedByID  *string     `json:"assignedById"`
	CompletedByID *string     `json:"completedById"`
	Status        ChoreStatus `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	CompletedAt   *time.Time  `json:"completedAt"`
}
