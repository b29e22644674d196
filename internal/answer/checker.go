package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
)

// Checker judges answers against the keys recorded when questions were issued.
// A key is dropped once the game commits the turn that checked it.
type Checker struct {
	keys *KeyStore
}

type CheckerConfig struct {
	Keys     *KeyStore
	EventBus *event.Bus
}

func NewChecker(c CheckerConfig) *Checker {
	ch := &Checker{keys: c.Keys}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameAnswerChecked, func(ctx context.Context, e event.Event) error {
			return ch.keys.Forget(ctx, e.(domain.EventAnswerChecked).Round.QuestionID)
		})
	}

	return ch
}

// Check compares a response with the question's answer key.
func (c *Checker) Check(ctx context.Context, q domain.Question, response string) (domain.Verdict, error) {
	if q.QuestionID == "" {
		return domain.Verdict{}, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("question ID is required"))
	}
	if strings.TrimSpace(response) == "" {
		return domain.Verdict{}, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("answer is required"))
	}

	correct, err := c.keys.Get(ctx, q.QuestionID)
	if err != nil {
		return domain.Verdict{}, err
	}

	v := domain.Verdict{
		Correct:       Equal(response, correct),
		CorrectAnswer: correct,
	}
	if v.Correct {
		v.Explanation = "Correct! Well done!"
	} else {
		v.Explanation = fmt.Sprintf("Incorrect. The correct answer was: %q", correct)
	}

	return v, nil
}
