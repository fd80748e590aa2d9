package postgres

import (
	"cashback-advisor/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type recommendationPayload struct {
	Predictions []domain.CategoryPrediction   `json:"predictions"`
	Decisions   []domain.CashbackRuleDecision `json:"decisions"`
}

// === RecommendationStorage ===

func (s *Storage) SaveRecommendation(ctx context.Context, rec *domain.Recommendation) error {
	if rec == nil {
		return fmt.Errorf("nil recommendation")
	}
	monthTime, err := domain.ParseMonth(rec.Month)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(recommendationPayload{
		Predictions: rec.Predictions,
		Decisions:   rec.Decisions,
	})
	if err != nil {
		return fmt.Errorf("encode recommendation: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO recommendations (user_id, month, id, created_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, month)
		DO UPDATE SET id = EXCLUDED.id, created_at = EXCLUDED.created_at, payload = EXCLUDED.payload
	`, rec.UserID, monthTime, rec.ID, rec.CreatedAt, payload)
	if err != nil {
		return fmt.Errorf("save recommendation: %w", err)
	}
	return nil
}

func (s *Storage) GetRecommendation(ctx context.Context, userID int64, monthStr string) (*domain.Recommendation, error) {
	monthTime, err := domain.ParseMonth(monthStr)
	if err != nil {
		return nil, err
	}

	rec := domain.Recommendation{UserID: userID, Month: monthStr}
	var payload []byte
	err = s.db.QueryRow(ctx, `
		SELECT id, created_at, payload FROM recommendations
		WHERE user_id = $1 AND month = $2
	`, userID, monthTime).Scan(&rec.ID, &rec.CreatedAt, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get recommendation: %w", err)
	}

	var p recommendationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode recommendation %s: %w", rec.ID, err)
	}
	rec.Predictions = p.Predictions
	rec.Decisions = p.Decisions
	return &rec, nil
}

// === ConfirmationStorage ===

func (s *Storage) SaveConfirmation(ctx context.Context, c *domain.Confirmation) error {
	if c == nil {
		return fmt.Errorf("nil confirmation")
	}
	monthTime, err := domain.ParseMonth(c.Month)
	if err != nil {
		return err
	}
	choices, err := json.Marshal(c.Choices)
	if err != nil {
		return fmt.Errorf("encode confirmation: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO confirmations (user_id, month, confirmed_at, choices)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, month)
		DO UPDATE SET confirmed_at = EXCLUDED.confirmed_at, choices = EXCLUDED.choices
	`, c.UserID, monthTime, c.ConfirmedAt, choices)
	if err != nil {
		return fmt.Errorf("save confirmation: %w", err)
	}
	return nil
}

func (s *Storage) GetConfirmation(ctx context.Context, userID int64, monthStr string) (*domain.Confirmation, error) {
	monthTime, err := domain.ParseMonth(monthStr)
	if err != nil {
		return nil, err
	}

	c := domain.Confirmation{UserID: userID, Month: monthStr}
	var choices []byte
	err = s.db.QueryRow(ctx, `
		SELECT confirmed_at, choices FROM confirmations
		WHERE user_id = $1 AND month = $2
	`, userID, monthTime).Scan(&c.ConfirmedAt, &choices)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get confirmation: %w", err)
	}
	if err := json.Unmarshal(choices, &c.Choices); err != nil {
		return nil, fmt.Errorf("decode confirmation: %w", err)
	}
	return &c, nil
}
