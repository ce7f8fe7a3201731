package responses

import (
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/sse"
)

// Drive reads frames from r through interp and an assembler until the stream
// completes, the provider reports an error, or the body runs out. onPartial
// may be nil. The first continuation id seen is recorded on turn.
//
// A read error ends the turn as StateErrored with whatever text arrived.
func Drive(r *sse.Reader, turn *Turn, interp *Interpreter, onPartial PartialFunc, logger *zap.Logger) *Outcome {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onPartial == nil {
		onPartial = func(ContentItem) {}
	}

	asm := NewAssembler()
	state := StateCompleted
	frames := 0

loop:
	for {
		ev, err := r.Next()
		if err != nil {
			logger.Warn("stream read failed", zap.Int("frames", frames), zap.Error(err))
			state = StateErrored
			break
		}
		if ev == nil {
			if rest := strings.TrimSpace(r.Remainder()); rest != "" {
				logger.Debug("discarding unterminated frame", zap.Int("bytes", len(rest)))
			}
			break
		}
		frames++

		act := interp.Interpret(*ev)
		if turn.CaptureID(act.ResponseID) {
			logger.Debug("continuation id from stream",
				zap.String("event", ev.Type),
				zap.String("response_id", act.ResponseID),
			)
		}

		switch act.Kind {
		case ActionTextDelta:
			onPartial(NewTextItem(act.Index, act.Text))
			asm.ApplyDelta(act.Index, act.Text)

		case ActionError:
			logger.Error("provider error mid-stream",
				zap.String("code", act.Code),
				zap.String("message", act.Message),
			)
			idx := asm.Len()
			onPartial(NewTextItem(idx, act.Text))
			asm.ApplyDelta(idx, act.Text)
			state = StateErrored
			break loop

		case ActionTerminate:
			break loop

		case ActionParseError:
			logger.Warn("skipping malformed frame", zap.String("event", ev.Type), zap.Error(act.Err))

		case ActionDone:
			logger.Debug("received [DONE] marker")
		}
	}

	logger.Debug("stream finished",
		zap.Int("frames", frames),
		zap.Int("fragments", asm.Len()),
		zap.Stringer("state", state),
	)

	return &Outcome{
		Query:          turn.Query,
		Text:           asm.Text(),
		ContinuationID: turn.ContinuationID,
		State:          state,
	}
}
