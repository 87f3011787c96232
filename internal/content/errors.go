package content

import "errors"

var (
	// ErrNoThemeSet means the weekly theme has never been configured;
	// theme-guided publication must refuse to act rather than guess.
	ErrNoThemeSet = errors.New("weekly theme not set")

	// ErrNoCandidates means every relevant article was already published.
	// A normal outcome when content is exhausted, not a crash.
	ErrNoCandidates = errors.New("no unpublished candidates for theme")

	// ErrEmbeddingUnavailable wraps failures of the embedding API.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)
