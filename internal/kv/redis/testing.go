package redis

import "github.com/redis/rueidis"

// NewStoreForTest wraps an externally constructed (usually mocked) client.
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}
