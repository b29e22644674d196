package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/telemetry"
)

const (
	DefaultBaseURL = "https://opentdb.com/api.php"

	TypeMultiple = "multiple"
	TypeBoolean  = "boolean"

	minCategory = 9
	maxCategory = 32
)

var responseCodes = map[int]string{
	1: "no results: the API doesn't have enough questions for your query",
	2: "invalid parameter: arguments passed in aren't valid",
	3: "token not found: session token does not exist",
	4: "token empty: session token has returned all possible questions for the specified query",
}

// AnswerKeys records the correct answer of an issued question.
type AnswerKeys interface {
	Put(ctx context.Context, questionID, correct string) error
}

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Keys       AnswerKeys
	// Category and Type are used by Fetch. Zero values mean any.
	Category int
	Type     string
}

// Client fetches questions from the Open Trivia Database.
type Client struct {
	baseURL  string
	http     *http.Client
	keys     AnswerKeys
	category int
	qtype    string
	shuffle  func(options []string)
}

func NewClient(c Config) *Client {
	cl := &Client{
		baseURL:  c.BaseURL,
		http:     c.HTTPClient,
		keys:     c.Keys,
		category: c.Category,
		qtype:    c.Type,
		shuffle: func(options []string) {
			rand.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
		},
	}

	if cl.baseURL == "" {
		cl.baseURL = DefaultBaseURL
	}
	if cl.http == nil {
		cl.http = telemetry.HTTPClient(10 * time.Second)
	}

	return cl
}

type Params struct {
	Category   int
	Difficulty domain.Difficulty
	Type       string
}

// Fetch returns a question of the given difficulty using the configured category and type.
func (c *Client) Fetch(ctx context.Context, d domain.Difficulty) (*domain.Question, error) {
	return c.Get(ctx, Params{
		Category:   c.category,
		Difficulty: d,
		Type:       c.qtype,
	})
}

// Get fetches one question and records its answer key.
func (c *Client) Get(ctx context.Context, p Params) (*domain.Question, error) {
	u, err := c.url(p)
	if err != nil {
		return nil, err
	}

	res, err := c.do(ctx, u)
	if err != nil {
		return nil, err
	}

	q := &domain.Question{
		QuestionID: uuid.NewString(),
		Category:   html.UnescapeString(res.Category),
		Difficulty: domain.Difficulty(res.Difficulty),
		Type:       res.Type,
		Text:       html.UnescapeString(res.Question),
	}

	correct := html.UnescapeString(res.CorrectAnswer)
	q.Options = make([]string, 0, len(res.IncorrectAnswers)+1)
	for _, a := range res.IncorrectAnswers {
		q.Options = append(q.Options, html.UnescapeString(a))
	}
	q.Options = append(q.Options, correct)
	c.shuffle(q.Options)

	if err := c.keys.Put(ctx, q.QuestionID, correct); err != nil {
		return nil, err
	}

	return q, nil
}

func (c *Client) url(p Params) (string, error) {
	v := url.Values{}
	v.Set("amount", "1")

	if p.Category != 0 {
		if p.Category < minCategory || p.Category > maxCategory {
			return "", errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("category must be between %d and %d", minCategory, maxCategory))
		}
		v.Set("category", strconv.Itoa(p.Category))
	}

	switch p.Difficulty {
	case "":
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
		v.Set("difficulty", string(p.Difficulty))
	default:
		return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown difficulty %q", p.Difficulty))
	}

	switch p.Type {
	case "":
	case TypeMultiple, TypeBoolean:
		v.Set("type", p.Type)
	default:
		return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown question type %q", p.Type))
	}

	return c.baseURL + "?" + v.Encode(), nil
}

type response struct {
	ResponseCode int      `json:"response_code"`
	Results      []result `json:"results"`
}

type result struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

func (c *Client) do(ctx context.Context, u string) (r *result, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		telemetry.UpstreamDuration.WithLabelValues("opentdb", outcome).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("opentdb: new request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("opentdb: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("opentdb: HTTP error: %s", resp.Status))
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("opentdb: decode response: %w", err))
	}

	if body.ResponseCode != 0 {
		msg, ok := responseCodes[body.ResponseCode]
		if !ok {
			msg = fmt.Sprintf("unknown error code: %d", body.ResponseCode)
		}
		return nil, errors.New(errors.CodeUnavailable, errors.WithMessagef("opentdb: %s", msg))
	}

	if len(body.Results) == 0 {
		return nil, errors.New(errors.CodeUnavailable, errors.WithMessagef("opentdb: no trivia questions returned"))
	}

	res := body.Results[0]
	if res.Question == "" || res.CorrectAnswer == "" {
		return nil, errors.New(errors.CodeUnavailable, errors.WithMessagef("opentdb: invalid question data"))
	}

	return &res, nil
}
