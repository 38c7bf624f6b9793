package chore

import (
	"errors"
	"fmt"

	"github.com/dukerupert/chorechamp/internal/model"
)

// ErrInvalidTransition is returned when an action is not allowed from the
// chore's current status.
var ErrInvalidTransition = errors.New("invalid transition")

type Action string

const (
	ActionClaim    Action = "claim"
	ActionAssign   Action = "assign"
	ActionComplete Action = "complete"
	ActionApprove  Action = "approve"
)

var transitions = map[model.ChoreStatus]map[Action]model.ChoreStatus{
	model.ChoreAvailable: {
		ActionClaim:    model.ChoreClaimed,
		ActionAssign:   model.ChoreAssigned,
		ActionComplete: model.ChorePending,
	},
	model.ChoreClaimed: {
		ActionComplete: model.ChorePending,
	},
	model.ChoreAssigned: {
		ActionComplete: model.ChorePending,
	},
	model.ChorePending: {
		ActionApprove: model.ChoreCompleted,
	},
}

// Next returns the status a chore moves to when action is applied in from.
func Next(from model.ChoreStatus, action Action) (model.ChoreStatus, error) {
	to, ok := transitions[from][action]
	if !ok {
		return "", fmt.Errorf("cannot %s a %s chore: %w", action, from, ErrInvalidTransition)
	}
	return to, nil
}
