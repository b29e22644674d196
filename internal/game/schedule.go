package game

import (
	"strings"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
)

// DefaultSchedule asks four medium questions followed by a hard one.
var DefaultSchedule = []domain.Difficulty{
	domain.DifficultyMedium,
	domain.DifficultyMedium,
	domain.DifficultyMedium,
	domain.DifficultyMedium,
	domain.DifficultyHard,
}

// ScheduleAt returns the difficulty asked at the given question index.
// Indices past the end of the schedule reuse its last entry; an empty schedule is the default one.
func ScheduleAt(schedule []domain.Difficulty, index int) domain.Difficulty {
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	if index < len(schedule) {
		return schedule[index]
	}

	return schedule[len(schedule)-1]
}

// ParseSchedule reads a schedule from difficulty names such as "medium" or "hard".
// No names means the default schedule.
func ParseSchedule(names []string) ([]domain.Difficulty, error) {
	if len(names) == 0 {
		return DefaultSchedule, nil
	}

	schedule := make([]domain.Difficulty, 0, len(names))
	for i, n := range names {
		d := domain.Difficulty(strings.ToLower(strings.TrimSpace(n)))
		switch d {
		case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
			schedule = append(schedule, d)
		default:
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("schedule[%d]: unknown difficulty %q", i, n))
		}
	}

	return schedule, nil
}
