package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/graywind/snoo/pkg/errors"
)

const (
	minSubredditLength = 3
	maxSubredditLength = 21

	minUsernameLength = 3
	maxUsernameLength = 20

	// MaxCommentIDs is the largest batch the info endpoint accepts.
	MaxCommentIDs      = 100
	maxCommentIDLength = 100
)

// ValidateSubredditName checks a subreddit name against reddit's naming
// rules. Called when a subreddit URI is computed, before any network call.
func ValidateSubredditName(name string) error {
	if name == "" {
		return &pkgerrs.ArgumentError{Argument: "subreddit", Message: "subreddit name cannot be empty"}
	}
	if len(name) < minSubredditLength {
		return &pkgerrs.ArgumentError{Argument: "subreddit", Message: fmt.Sprintf("subreddit name must be at least %d characters", minSubredditLength)}
	}
	if len(name) > maxSubredditLength {
		return &pkgerrs.ArgumentError{Argument: "subreddit", Message: fmt.Sprintf("subreddit name cannot exceed %d characters", maxSubredditLength)}
	}
	if name[0] == '_' || name[len(name)-1] == '_' {
		return &pkgerrs.ArgumentError{Argument: "subreddit", Message: "subreddit name cannot start or end with underscore"}
	}
	for i, ch := range name {
		if !isWordChar(ch) {
			return &pkgerrs.ArgumentError{Argument: "subreddit", Message: fmt.Sprintf("subreddit name contains invalid character %q at position %d", ch, i)}
		}
	}
	return nil
}

// ValidateUsername checks a reddit username shape. Called when a user URI is
// computed, before any network call.
func ValidateUsername(name string) error {
	name = strings.TrimPrefix(name, "u/")
	if name == "" {
		return &pkgerrs.ArgumentError{Argument: "username", Message: "username cannot be empty"}
	}
	if len(name) < minUsernameLength {
		return &pkgerrs.ArgumentError{Argument: "username", Message: fmt.Sprintf("username must be at least %d characters", minUsernameLength)}
	}
	if len(name) > maxUsernameLength {
		return &pkgerrs.ArgumentError{Argument: "username", Message: fmt.Sprintf("username cannot exceed %d characters", maxUsernameLength)}
	}
	for i, ch := range name {
		if !isWordChar(ch) && ch != '-' {
			return &pkgerrs.ArgumentError{Argument: "username", Message: fmt.Sprintf("username contains invalid character %q at position %d", ch, i)}
		}
	}
	return nil
}

// ValidateCommentIDs checks a batch of comment ids against reddit's API
// limits and id alphabet.
func ValidateCommentIDs(ids []string) error {
	if len(ids) > MaxCommentIDs {
		return &pkgerrs.ArgumentError{Argument: "commentIDs", Message: fmt.Sprintf("cannot request more than %d comment IDs at once (got %d)", MaxCommentIDs, len(ids))}
	}
	for i, id := range ids {
		if err := validateCommentID(id); err != nil {
			return &pkgerrs.ArgumentError{Argument: fmt.Sprintf("commentIDs[%d]", i), Message: err.Error()}
		}
	}
	return nil
}

// validateCommentID checks a single base36 comment id.
func validateCommentID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("comment ID cannot be empty")
	}
	if len(id) > maxCommentIDLength {
		return fmt.Errorf("comment ID too long (max %d characters)", maxCommentIDLength)
	}
	for _, ch := range id {
		if !((ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')) {
			return fmt.Errorf("comment ID contains invalid character: %c", ch)
		}
	}
	return nil
}

func isWordChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_'
}
