package order

import (
	"context"
	"time"

	"github.com/m3rciful/dispatchbot/bot/record"
	"github.com/m3rciful/dispatchbot/bot/session"
	"github.com/m3rciful/dispatchbot/bot/texts"
	"github.com/m3rciful/dispatchbot/core/logger"
)

// Cancel ends the customer's active order.
func (s *Service) Cancel(ctx context.Context, actor Actor) error {
	sess, ok := s.store.Delete(actor.ID)
	if !ok {
		s.sendText(ctx, actor.ID, "customer.nothing_to_cancel", nil)
		return nil
	}
	ctx = logger.WithRef(ctx, sess.Ref)
	s.undo.Cancel(sess.Ref, undoApprove)

	from := sess.Status
	sess.Status = session.StatusCanceled
	s.emit(ctx, sess, from, sess.Status, actor.ID, "customer")
	s.persist(ctx, sess, record.PhaseIntake, nil)

	vars := texts.Vars{"REF": sess.Ref}
	s.sendText(ctx, actor.ID, "customer.canceled", vars)
	if sess.Receipt.OnFile() || pastReview(from) {
		s.sendText(ctx, s.cfg.StaffChatID, "staff.canceled", vars)
	}
	if sess.AssignedDriverID != 0 {
		s.sendText(ctx, sess.AssignedDriverID, "driver.canceled", vars)
	}
	return nil
}

// pastReview reports whether staff has already seen the order.
func pastReview(st session.Status) bool {
	switch st {
	case session.StatusAwaitingReview, session.StatusRejected, session.StatusApprovedHold,
		session.StatusDispatching, session.StatusAssigned, session.StatusOutForDelivery:
		return true
	}
	return false
}

func (s *Service) requireOwner(actor Actor) error {
	if s.cfg.OwnerID == 0 || actor.ID != s.cfg.OwnerID {
		return notAllowed("owner.not_allowed")
	}
	return nil
}

// Revert forces an order back to AWAITING_RECEIPT, dropping its driver and
// timers. Owner only.
func (s *Service) Revert(ctx context.Context, actor Actor, ref string) (string, error) {
	if err := s.requireOwner(actor); err != nil {
		return "", err
	}
	ctx = logger.WithRef(ctx, ref)
	var from session.Status
	var releasedDriver int64
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		from = sess.Status
		if err := moveTo(sess, session.StatusAwaitingReceipt); err != nil {
			return err
		}
		sess.StopTimers()
		releasedDriver = sess.AssignedDriverID
		sess.AssignedDriverID = 0
		sess.GiveupUntil = time.Time{}
		sess.CreatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return "", s.lookupErr(err, "err.not_found")
	}
	s.undo.Cancel(ref, undoApprove)
	s.emit(ctx, sess, from, sess.Status, actor.ID, "revert")
	s.persist(ctx, sess, record.PhaseIntake, nil)

	vars := texts.Vars{"REF": ref}
	if releasedDriver != 0 {
		s.sendText(ctx, releasedDriver, "driver.released", vars)
	}
	s.sendText(ctx, sess.CustomerID, "customer.reverted", vars)
	if sess.Receipt.OnFile() {
		msg := s.reviewMessage(sess, "staff.reverted", nil)
		s.send(ctx, s.cfg.StaffChatID, msg)
	} else {
		s.sendText(ctx, s.cfg.StaffChatID, "staff.reverted", vars)
	}
	return s.t("owner.reverted", vars), nil
}

// ForceApprove approves an order and dispatches it without the hold. Owner
// only.
func (s *Service) ForceApprove(ctx context.Context, actor Actor, ref string) (string, error) {
	if err := s.requireOwner(actor); err != nil {
		return "", err
	}
	ctx = logger.WithRef(ctx, ref)
	_, err := s.finalize(ctx, ref, actor.ID, "force_approve", func(sess *session.Session) error {
		if sess.Status == session.StatusApprovedHold {
			return nil
		}
		return moveTo(sess, session.StatusApprovedHold)
	})
	if err != nil {
		return "", s.lookupErr(err, "err.not_found")
	}
	return s.t("owner.force_approved", texts.Vars{"REF": ref}), nil
}

// Expire closes sessions dropped by the idle sweep: open undo windows are
// canceled and the drop is recorded as a cancellation.
func (s *Service) Expire(swept []session.Session) {
	for _, sess := range swept {
		ctx := refContext(sess.Ref)
		s.undo.Cancel(sess.Ref, undoApprove)
		from := sess.Status
		sess.Status = session.StatusCanceled
		s.emit(ctx, sess, from, sess.Status, 0, "expired")
		s.persist(ctx, sess, record.PhaseIntake, nil)
	}
}
