package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a cache pattern, logging failures instead
// of surfacing them. Stale cache is acceptable; failed requests are not.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateAttemptCache drops the cached attempt row after any mutation.
func InvalidateAttemptCache(ctx context.Context, cm *CacheManager, testID, studentID string) {
	SafeDelete(ctx, cm.Fast,
		fmt.Sprintf("attempt:%s:%s", testID, studentID))
}

// InvalidateQuestionSetCache drops the cached set row after it changes.
func InvalidateQuestionSetCache(ctx context.Context, cm *CacheManager, setID uint) {
	SafeDelete(ctx, cm.Question, fmt.Sprintf("set:%d", setID))
}

// InvalidateQuestionCache drops cached question rows after an upsert; a
// re-import may rewrite content and answer keys in place.
func InvalidateQuestionCache(ctx context.Context, cm *CacheManager, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf("id:%s", id)
	}
	SafeDelete(ctx, cm.Question, keys...)
}
