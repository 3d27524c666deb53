package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/tktogether/motleycrowd/internal/domain"
)

// QuestionLoader loads question content JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, questionID string) (domain.QuestionContent, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, questionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionContent{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.QuestionContent{}, fmt.Errorf("load question: %w", err)
	}
	var content domain.QuestionContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return domain.QuestionContent{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return content, nil
}
