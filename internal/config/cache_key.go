package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserLoginKey returns the cache key holding a user's active login JTI.
func (r *CacheKeyStruct) UserLoginKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// SessionAnswersKey returns the cache key for a session's live answer hash.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

var CacheKey = NewCacheKeyStruct()
