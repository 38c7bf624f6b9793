package weekly

import (
	"math"
	"time"

	"github.com/dukerupert/chorechamp/internal/model"
)

// LastSunday returns local midnight of the most recent Sunday in t's
// location. On a Sunday that is midnight of the same day.
func LastSunday(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// NextSunday returns midnight of the Sunday after LastSunday(t).
func NextSunday(t time.Time) time.Time {
	return LastSunday(t).AddDate(0, 0, 7)
}

// WeekKey identifies the week containing t as the YYYY-MM-DD of its Sunday.
func WeekKey(t time.Time) string {
	return LastSunday(t).Format("2006-01-02")
}

// DaysUntilReset is the number of days, rounded up, until the next rollover.
func DaysUntilReset(now time.Time) int {
	return int(math.Ceil(NextSunday(now).Sub(now).Hours() / 24))
}

// PickChampion returns the member with the strictly greatest weekly points,
// the first one on ties. Nobody is crowned when the best score is not positive.
func PickChampion(members []model.Member, weekEnding time.Time) *model.WeeklyChampion {
	var best *model.Member
	for i := range members {
		if best == nil || members[i].WeeklyPoints > best.WeeklyPoints {
			best = &members[i]
		}
	}
	if best == nil || best.WeeklyPoints <= 0 {
		return nil
	}
	return &model.WeeklyChampion{
		MemberID:     best.ID,
		Name:         best.Name,
		Avatar:       best.Avatar,
		WeeklyPoints: best.WeeklyPoints,
		WeekEnding:   weekEnding,
	}
}
