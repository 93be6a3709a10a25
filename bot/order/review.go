package order

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/m3rciful/dispatchbot/bot/action"
	"github.com/m3rciful/dispatchbot/bot/dispatch"
	"github.com/m3rciful/dispatchbot/bot/notify"
	"github.com/m3rciful/dispatchbot/bot/record"
	"github.com/m3rciful/dispatchbot/bot/session"
	"github.com/m3rciful/dispatchbot/bot/texts"
	"github.com/m3rciful/dispatchbot/core/logger"
)

// reviewable reports whether staff may decide on the session's receipt.
// Undo returns an order to AWAITING_RECEIPT with its receipt kept on file.
func reviewable(sess *session.Session) bool {
	switch sess.Status {
	case session.StatusAwaitingReview:
		return true
	case session.StatusAwaitingReceipt:
		return sess.Receipt.OnFile()
	}
	return false
}

func (s *Service) approve(ctx context.Context, actor Actor, ref string) (string, error) {
	if err := s.requireStaff(ctx, actor); err != nil {
		return "", err
	}
	var from session.Status
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if s.store.ButtonExpired(*sess) {
			return expired("err.expired")
		}
		if !reviewable(sess) {
			return invalidState("err.invalid_state")
		}
		from = sess.Status
		if err := moveTo(sess, session.StatusApprovedHold); err != nil {
			return err
		}
		s.store.Arm(&sess.Approval, s.cfg.Hold, func(id uint64) { s.holdElapsed(ref, id) })
		return nil
	})
	if err != nil {
		return "", s.lookupErr(err, "err.not_found")
	}
	s.emit(ctx, sess, from, sess.Status, actor.ID, "approve")

	s.undo.Open(ref, undoApprove, s.cfg.StaffChatID, s.cfg.Hold)
	msgID := s.send(ctx, s.cfg.StaffChatID, notify.Message{
		Text: s.t("staff.hold", texts.Vars{
			"REF":     ref,
			"ACTOR":   actorLabel(actor),
			"SECONDS": strconv.Itoa(int(s.cfg.Hold.Seconds())),
		}),
		Buttons: [][]notify.Button{notify.Row(
			notify.Button{Text: s.t("btn.undo", nil), Action: action.With(action.Undo, ref, undoApprove)},
		)},
	})
	if msgID != 0 {
		_, _ = s.store.UpdateByRef(ref, func(sess *session.Session) error {
			if sess.Status != session.StatusApprovedHold {
				return errStale
			}
			sess.HoldMsgID = msgID
			return nil
		})
	}
	return s.t("ack.approved", nil), nil
}

func (s *Service) undoApproval(ctx context.Context, actor Actor, ref string) (string, error) {
	if err := s.requireStaff(ctx, actor); err != nil {
		return "", err
	}
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if sess.Status != session.StatusApprovedHold {
			return expired("err.undo_expired")
		}
		if s.store.ButtonExpired(*sess) {
			return expired("err.expired")
		}
		// any staff member may undo; the window is held by the staff chat
		if err := s.undo.Consume(ref, undoApprove, s.cfg.StaffChatID); err != nil {
			return expired("err.undo_expired")
		}
		sess.Approval.Stop()
		sess.CreatedAt = s.clock.Now()
		return moveTo(sess, session.StatusAwaitingReceipt)
	})
	if err != nil {
		return "", s.lookupErr(err, "err.not_found")
	}
	s.emit(ctx, sess, session.StatusApprovedHold, sess.Status, actor.ID, "undo")

	msg := s.reviewMessage(sess, "staff.undone", texts.Vars{"ACTOR": actorLabel(actor)})
	msg.PhotoID = ""
	s.editOrSend(ctx, s.cfg.StaffChatID, sess.HoldMsgID, msg)
	return s.t("ack.undone", nil), nil
}

func (s *Service) reject(ctx context.Context, actor Actor, ref string) (string, error) {
	if err := s.requireStaff(ctx, actor); err != nil {
		return "", err
	}
	var from session.Status
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if s.store.ButtonExpired(*sess) {
			return expired("err.expired")
		}
		if !reviewable(sess) {
			return invalidState("err.invalid_state")
		}
		from = sess.Status
		sess.Receipt = session.Receipt{}
		return moveTo(sess, session.StatusRejected)
	})
	if err != nil {
		return "", s.lookupErr(err, "err.not_found")
	}
	s.emit(ctx, sess, from, sess.Status, actor.ID, "reject")
	s.persist(ctx, sess, record.PhaseIntake, nil)

	s.sendText(ctx, sess.CustomerID, "customer.rejected", texts.Vars{"REF": ref})
	s.sendText(ctx, s.cfg.StaffChatID, "staff.rejected", texts.Vars{"REF": ref, "ACTOR": actorLabel(actor)})
	return s.t("ack.rejected", nil), nil
}

// holdElapsed is the approval timer callback.
func (s *Service) holdElapsed(ref string, id uint64) {
	ctx := refContext(ref)
	_, err := s.finalize(ctx, ref, 0, "hold_elapsed", func(sess *session.Session) error {
		if !sess.Approval.Is(id) || sess.Status != session.StatusApprovedHold {
			return errStale
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, session.ErrNotFound):
		logger.Debug(ctx, logger.ComponentOrder, "order.hold",
			slog.String("status", "skip"),
			slog.String("ref", ref),
		)
	default:
		logger.Warn(ctx, logger.ComponentOrder, "order.hold",
			slog.String("status", "fail"),
			slog.String("ref", ref),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

// finalize moves an approved order to dispatching and broadcasts it. guard
// runs first inside the update and may abort with errStale.
func (s *Service) finalize(ctx context.Context, ref string, actorID int64, note string, guard func(*session.Session) error) (session.Session, error) {
	var from session.Status
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		from = sess.Status
		if err := guard(sess); err != nil {
			return err
		}
		if err := moveTo(sess, session.StatusDispatching); err != nil {
			return err
		}
		sess.Approval.Stop()
		s.openDispatch(sess)
		return nil
	})
	if err != nil {
		return sess, err
	}
	s.undo.Cancel(ref, undoApprove)
	s.emit(ctx, sess, from, sess.Status, actorID, note)

	s.editOrSend(ctx, s.cfg.StaffChatID, sess.HoldMsgID, notify.Message{
		Text: s.t("staff.dispatching", texts.Vars{"REF": ref}),
	})
	s.sendText(ctx, sess.CustomerID, "customer.approved", texts.Vars{"REF": ref})
	s.persist(ctx, sess, record.PhasePaymentConfirmed, nil)
	s.broadcast(ctx, sess)
	return sess, nil
}

// openDispatch refreshes the button TTL and arms the driver window.
func (s *Service) openDispatch(sess *session.Session) {
	ref := sess.Ref
	sess.CreatedAt = s.clock.Now()
	s.store.Arm(&sess.Driver, s.cfg.DriverWindow, func(id uint64) { s.driverWindowElapsed(ref, id) })
}

// broadcast offers the job to every driver the session has not excluded and
// reports the outcome to staff.
func (s *Service) broadcast(ctx context.Context, sess session.Session) {
	job := dispatch.Job{Ref: sess.Ref, Fields: sess.Fields}
	report, err := s.broadcaster.Broadcast(ctx, job, sess.ExcludedDrivers)
	if err != nil || report.Attempted() == 0 {
		if err != nil {
			logger.Warn(ctx, logger.ComponentDispatch, "dispatch.broadcast",
				slog.String("status", "fail"),
				slog.String("ref", sess.Ref),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
		s.sendText(ctx, s.cfg.StaffChatID, "staff.no_drivers", texts.Vars{"REF": sess.Ref})
		return
	}
	s.sendText(ctx, s.cfg.StaffChatID, "staff.broadcast_report", texts.Vars{
		"REF":     sess.Ref,
		"SENT":    strconv.Itoa(len(report.Sent)),
		"FAILED":  strconv.Itoa(len(report.Failed)),
		"DETAILS": report.Details(),
	})
}

// driverWindowElapsed is the driver timer callback. The order stays in
// DISPATCHING for manual assignment.
func (s *Service) driverWindowElapsed(ref string, id uint64) {
	ctx := refContext(ref)
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if !sess.Driver.Is(id) || sess.Status != session.StatusDispatching || sess.AssignedDriverID != 0 {
			return errStale
		}
		sess.Driver.Stop()
		return nil
	})
	if err != nil {
		logger.Debug(ctx, logger.ComponentOrder, "order.driver_window",
			slog.String("status", "skip"),
			slog.String("ref", ref),
		)
		return
	}
	logger.Info(ctx, logger.ComponentOrder, "order.driver_window",
		slog.String("status", "timeout"),
		slog.String("ref", ref),
	)
	s.sendText(ctx, s.cfg.StaffChatID, "staff.no_driver_accepted", texts.Vars{
		"REF":     ref,
		"MINUTES": strconv.Itoa(int(s.cfg.DriverWindow.Minutes())),
	})
	s.sendText(ctx, sess.CustomerID, "customer.delay", texts.Vars{"REF": ref})
}

func actorLabel(a Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return strconv.FormatInt(a.ID, 10)
}
