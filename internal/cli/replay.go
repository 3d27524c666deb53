package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tktogether/motleycrowd/internal/config"
	"github.com/tktogether/motleycrowd/internal/domain"
	"github.com/tktogether/motleycrowd/internal/game"
)

// NewReplayCmd builds a settlement from a recorded payload file and prints
// the standings, exercising the settlement path without a live server.
func NewReplayCmd(configPath, userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <payload.json>",
		Short: "Render a settlement from a recorded payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], *configPath, *userID)
		},
	}
}

func runReplay(cmd *cobra.Command, payloadPath, configPath, userFlag string) error {
	data, err := os.ReadFile(payloadPath)
	if err != nil {
		return err
	}
	var payload domain.SettlementPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	cfg, _ := config.Load(configPath)
	localUser := userFlag
	if localUser == "" {
		localUser = cfg.Server.UserID
	}

	catalog, cleanup, err := buildResolver(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// Recorded payloads may reference questions outside the configured
	// catalog; fall back to placeholder content so replay never fails.
	resolver := replayResolver{next: catalog}

	settlement, err := game.NewSyntheticSettlement(cmd.Context(), localUser, resolver, payload)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "settlement: %d questions, viewed as %s\n", settlement.Size(), settlement.PerspectiveUserID())
	for _, user := range settlement.Users() {
		score, err := settlement.ScoreOf(user.ID)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "#%d %s: %.1f\n", settlement.RankOf(user.ID), user.Username, score.Total())
	}
	for _, index := range settlement.Indexes() {
		result := settlement.At(index)
		if result == nil {
			continue
		}
		fmt.Fprintf(out, "Q%d %s: %d/%d answered\n",
			index+1, result.Question.ID, len(result.Breakdown.Answers), result.TotalParticipants)
	}
	return nil
}

// replayResolver serves placeholder content when the catalog misses.
type replayResolver struct {
	next game.QuestionResolver
}

func (r replayResolver) Resolve(ctx context.Context, questionID string, picked, remaining []string, priorAnswer string) (domain.Question, error) {
	question, err := r.next.Resolve(ctx, questionID, picked, remaining, priorAnswer)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return domain.Question{
			ID:        questionID,
			Prompt:    questionID,
			Picked:    picked,
			Remaining: remaining,
			Answer:    priorAnswer,
		}, nil
	}
	return question, err
}
