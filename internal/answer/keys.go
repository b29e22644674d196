package answer

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/trivia/internal/errors"
)

const defaultKeyTTL = time.Hour

// KeyStore keeps the correct answer of every issued question until its turn is committed or it expires.
type KeyStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type KeyStoreConfig struct {
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

func NewKeyStore(c KeyStoreConfig) *KeyStore {
	s := &KeyStore{
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}
	if s.ttl <= 0 {
		s.ttl = defaultKeyTTL
	}

	return s
}

// Put stores the answer key of a question.
func (s *KeyStore) Put(ctx context.Context, questionID, correct string) error {
	if err := s.redis.Set(ctx, s.key(questionID), correct, s.ttl).Err(); err != nil {
		return errors.Unavailable(fmt.Errorf("store answer key: %w", err))
	}

	return nil
}

// Get returns the answer key of a question. The key stays in place until Forget,
// so a check whose turn was never committed can be repeated.
func (s *KeyStore) Get(ctx context.Context, questionID string) (string, error) {
	correct, err := s.redis.Get(ctx, s.key(questionID)).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown question ID or question has expired: %s", questionID))
	}
	if err != nil {
		return "", errors.Unavailable(fmt.Errorf("get answer key: %w", err))
	}

	return correct, nil
}

// Forget drops the answer key of a question.
func (s *KeyStore) Forget(ctx context.Context, questionID string) error {
	if err := s.redis.Del(ctx, s.key(questionID)).Err(); err != nil {
		return errors.Unavailable(fmt.Errorf("forget answer key: %w", err))
	}

	return nil
}

func (s *KeyStore) key(questionID string) string {
	return fmt.Sprintf("%s:question:%s", s.prefix, questionID)
}
