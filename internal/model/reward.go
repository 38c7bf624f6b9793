package model

import "time"

type Reward struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"familyId"`
	Emoji     string    `json:"emoji"`
	Title     string    `json:"title"`
	PointCost int       `json:"pointCost"`
	CreatedAt time.Time `json:"createdAt"`
}

// RewardRedemption is written once when a reward is redeemed and never updated.
type RewardRedemption struct {
	ID          string    `json:"id"`
	RewardID    string    `json:"rewardId"`
	MemberID    string    `json:"memberId"`
	PointsSpent int       `json:"pointsSpent"`
	RedeemedAt  time.Time `json:"redeemedAt"`
}
