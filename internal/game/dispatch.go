package game

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/tktogether/motleycrowd/internal/domain"
)

// Bind wires the session's event handlers to the transport event source.
// Malformed frames and resolver failures are logged and dropped; the session
// is never left partially mutated by them.
func Bind(ctx context.Context, events EventSource, session *Session, logger zerolog.Logger) {
	events.Subscribe("game.user", func(payload json.RawMessage) {
		var ev domain.UserEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Error().Err(err).Msg("decode user event")
			return
		}
		session.HandleUser(ev)
	})

	events.Subscribe("game.ready", func(json.RawMessage) {
		session.HandleReady()
	})

	events.Subscribe("game.pending", func(json.RawMessage) {
		session.HandlePending()
	})

	events.Subscribe("game.question", func(payload json.RawMessage) {
		var ev domain.QuestionEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Error().Err(err).Msg("decode question event")
			return
		}
		if err := session.HandleQuestion(ctx, ev); err != nil {
			logger.Error().Err(err).Str("question", ev.QuestionID).Msg("apply question event")
		}
	})

	events.Subscribe("game.answer", func(payload json.RawMessage) {
		var ev domain.AnswerEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Error().Err(err).Msg("decode answer event")
			return
		}
		session.HandleAnswer(ev)
	})

	events.Subscribe("game.settlement", func(payload json.RawMessage) {
		var data domain.SettlementPayload
		if err := json.Unmarshal(payload, &data); err != nil {
			logger.Error().Err(err).Msg("decode settlement payload")
			return
		}
		if err := session.HandleSettlement(ctx, data); err != nil {
			logger.Error().Err(err).Msg("apply settlement")
		}
	})

	events.Subscribe("game.resume", func(payload json.RawMessage) {
		var data domain.ResumePayload
		if err := json.Unmarshal(payload, &data); err != nil {
			logger.Error().Err(err).Msg("decode resume payload")
			return
		}
		if err := session.HandleResume(ctx, data); err != nil {
			logger.Error().Err(err).Msg("apply resume")
		}
	})
}
