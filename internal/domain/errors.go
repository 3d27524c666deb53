package domain

import "errors"

var (
	// ErrQuestionNotFound indicates the question content could not be loaded.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrScoreNotFound is returned when a settlement holds no record for a user.
	ErrScoreNotFound = errors.New("score record not found")
)
