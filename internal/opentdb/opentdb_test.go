package opentdb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/trivia/internal/answer"
	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/opentdb"
)

const okBody = `{
  "response_code": 0,
  "results": [{
    "category": "Science &amp; Nature",
    "type": "multiple",
    "difficulty": "medium",
    "question": "What is the chemical symbol for &quot;gold&quot;?",
    "correct_answer": "Au",
    "incorrect_answers": ["Ag", "Gd", "Go"]
  }]
}`

func TestClient_Fetch(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(okBody))
	}))
	t.Cleanup(srv.Close)

	keys := makeKeys(t)
	c := opentdb.NewClient(opentdb.Config{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Keys:       keys,
		Category:   17,
		Type:       opentdb.TypeMultiple,
	})

	q, err := c.Fetch(context.Background(), domain.DifficultyHard)
	require.NoError(t, err)

	assert.Equal(t, url.Values{
		"amount":     {"1"},
		"category":   {"17"},
		"difficulty": {"hard"},
		"type":       {"multiple"},
	}, got)

	assert.NotEmpty(t, q.QuestionID)
	assert.Equal(t, "Science & Nature", q.Category)
	assert.Equal(t, `What is the chemical symbol for "gold"?`, q.Text)
	assert.Equal(t, domain.DifficultyMedium, q.Difficulty, "difficulty is reported as returned by the API")
	assert.ElementsMatch(t, []string{"Au", "Ag", "Gd", "Go"}, q.Options)

	correct, err := keys.Get(context.Background(), q.QuestionID)
	require.NoError(t, err)
	assert.Equal(t, "Au", correct)
}

func TestClient_Get_Errors(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
		params opentdb.Params
		want   errors.Code
	}{
		"category out of range": {
			params: opentdb.Params{Category: 40},
			want:   errors.CodeInvalidArgument,
		},
		"unknown type": {
			params: opentdb.Params{Type: "essay"},
			want:   errors.CodeInvalidArgument,
		},
		"http error": {
			status: http.StatusTooManyRequests,
			want:   errors.CodeUnavailable,
		},
		"no results": {
			body: `{"response_code": 1, "results": []}`,
			want: errors.CodeUnavailable,
		},
		"unknown response code": {
			body: `{"response_code": 9, "results": []}`,
			want: errors.CodeUnavailable,
		},
		"empty results": {
			body: `{"response_code": 0, "results": []}`,
			want: errors.CodeUnavailable,
		},
		"missing answer": {
			body: `{"response_code": 0, "results": [{"question": "Why?"}]}`,
			want: errors.CodeUnavailable,
		},
		"malformed json": {
			body: `{"response_code":`,
			want: errors.CodeUnavailable,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			c := opentdb.NewClient(opentdb.Config{
				BaseURL:    srv.URL,
				HTTPClient: srv.Client(),
				Keys:       makeKeys(t),
			})

			_, err := c.Get(context.Background(), tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.Convert(err).Code)
		})
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c := opentdb.NewClient(opentdb.Config{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Keys:       makeKeys(t),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, domain.DifficultyMedium)
	require.ErrorIs(t, err, errors.ErrUnavailable)
}

func makeKeys(t *testing.T) *answer.KeyStore {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	return answer.NewKeyStore(answer.KeyStoreConfig{Redis: rc, Prefix: "test"})
}
