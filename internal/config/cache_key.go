package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestMetaKey returns the cache key for a test's catalog record
func (r *CacheKeyStruct) TestMetaKey(testID string) string {
	return fmt.Sprintf("test:%s:meta", testID)
}

// TestQuestionsKey returns the cache key for a test's ordered questions, answer key included.
// Never served to clients as-is.
func (r *CacheKeyStruct) TestQuestionsKey(testID string) string {
	return fmt.Sprintf("test:%s:questions", testID)
}

// ActiveTestsKey returns the cache key for the active test listing
func (r *CacheKeyStruct) ActiveTestsKey() string {
	return "tests:active"
}

var CacheKey = NewCacheKeyStruct()
