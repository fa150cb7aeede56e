package domain

import "errors"

var (
	// ErrSetNotFound is returned when no daily question set exists for a (date, category).
	ErrSetNotFound = errors.New("daily question set not found")
	// ErrSetExists signals an attempt to persist a second set for the same (date, category).
	ErrSetExists = errors.New("daily question set already exists")
	// ErrRankingNotFound is returned when a user has no record in a ranking bucket.
	ErrRankingNotFound = errors.New("ranking record not found")
	// ErrSnapshotNotFound is returned when a leaderboard bucket has never been built.
	ErrSnapshotNotFound = errors.New("leaderboard snapshot not found")
	// ErrMetadataNotFound is returned when no stats metadata document has been written yet.
	ErrMetadataNotFound = errors.New("stats metadata not found")
	// ErrProfileNotFound is returned when a user profile does not exist.
	ErrProfileNotFound = errors.New("user profile not found")
	// ErrAlreadyPlayed rejects a second ranked attempt for the same user, category and day.
	ErrAlreadyPlayed = errors.New("ranked attempt already submitted today")
	// ErrInvalidPeriod rejects period values outside daily/monthly/allTime.
	ErrInvalidPeriod = errors.New("invalid ranking period")
)
