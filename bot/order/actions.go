package order

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/dispatchbot/bot/action"
	"github.com/m3rciful/dispatchbot/core/logger"
)

// HandleAction applies a decoded button press. The returned answer is the
// short text for the tap acknowledgement; on a rejection it is the localized
// reason and err is the *Rejection.
func (s *Service) HandleAction(ctx context.Context, actor Actor, a action.Action) (string, error) {
	ctx = logger.WithRef(ctx, a.Ref)
	answer, err := s.apply(ctx, actor, a)
	if err == nil {
		return answer, nil
	}
	if r, ok := IsRejection(err); ok {
		logger.Debug(ctx, logger.ComponentOrder, "order.action",
			slog.String("status", "rejected"),
			slog.String("action", string(a.Kind)),
			slog.String("err_code", r.Code()),
		)
	}
	return s.Answer(err), err
}

func (s *Service) apply(ctx context.Context, actor Actor, a action.Action) (string, error) {
	switch a.Kind {
	case action.Pay:
		return s.choosePayment(ctx, actor, a.Ref, a.Arg)
	case action.TINYes:
		return s.answerTIN(ctx, actor, a.Ref, true)
	case action.TINNo:
		return s.answerTIN(ctx, actor, a.Ref, false)
	case action.ClearPrevious:
		return s.resolveStaged(ctx, actor, a.Ref, true)
	case action.KeepPrevious:
		return s.resolveStaged(ctx, actor, a.Ref, false)
	case action.Approve:
		return s.approve(ctx, actor, a.Ref)
	case action.Reject:
		return s.reject(ctx, actor, a.Ref)
	case action.Undo:
		if a.Arg != undoApprove {
			return "", invalidState("common.unsupported_action")
		}
		return s.undoApproval(ctx, actor, a.Ref)
	case action.Accept:
		return s.accept(ctx, actor, a.Ref)
	case action.Picked:
		return s.picked(ctx, actor, a.Ref)
	case action.Delivered:
		return s.delivered(ctx, actor, a.Ref)
	case action.GiveUp:
		return s.giveUp(ctx, actor, a.Ref)
	default:
		return "", fmt.Errorf("order: unknown action %q", a.Kind)
	}
}
