package order

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/m3rciful/dispatchbot/bot/dispatch"
	"github.com/m3rciful/dispatchbot/bot/record"
	"github.com/m3rciful/dispatchbot/bot/session"
	"github.com/m3rciful/dispatchbot/bot/texts"
)

// accept assigns the job to the first driver who taps Accept. The check and
// the assignment happen in one store update, so concurrent taps resolve to a
// single winner.
func (s *Service) accept(ctx context.Context, actor Actor, ref string) (string, error) {
	// a dropped job answers not-found before the roster is consulted
	if _, ok := s.store.GetByRef(ref); !ok {
		return "", notFound("err.job_not_found")
	}
	driver, err := s.drivers.Get(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, dispatch.ErrDriverNotFound) {
			return "", notAllowed("err.not_allowed")
		}
		return "", err
	}

	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		switch {
		case sess.AssignedDriverID == actor.ID:
			return conflict("err.already_yours")
		case sess.AssignedDriverID != 0:
			return conflict("err.already_assigned")
		case sess.Excluded(actor.ID):
			return notAllowed("err.not_allowed")
		case s.store.ButtonExpired(*sess):
			return expired("err.expired")
		}
		if sess.Status != session.StatusDispatching {
			return invalidState("err.invalid_state")
		}
		if err := moveTo(sess, session.StatusAssigned); err != nil {
			return err
		}
		sess.AssignedDriverID = actor.ID
		sess.Driver.Stop()
		sess.GiveupUntil = s.clock.Now().Add(s.cfg.GiveUpWindow)
		return nil
	})
	if err != nil {
		return "", s.lookupErr(err, "err.job_not_found")
	}
	s.emit(ctx, sess, session.StatusDispatching, sess.Status, actor.ID, "accept")

	job := dispatch.Job{Ref: ref, Fields: sess.Fields}
	s.send(ctx, actor.ID, dispatch.AssignedCard(s.texts, job, sess.GiveupUntil))
	vars := texts.Vars{"REF": ref, "DRIVER": driver.Name, "DRIVER_PHONE": orPlaceholder(driver.Phone)}
	s.sendText(ctx, s.cfg.StaffChatID, "staff.driver_assigned", vars)
	s.sendText(ctx, sess.CustomerID, "customer.driver_assigned", vars)
	s.persist(ctx, sess, record.PhaseDriverAccepted, func(rec *record.Record) {
		rec.DriverName = driver.Name
	})
	return s.t("ack.accepted", nil), nil
}

// ownJob checks that driverID holds the job.
func ownJob(sess *session.Session, driverID int64) error {
	if sess.AssignedDriverID != driverID {
		return notAllowed("err.not_your_job")
	}
	return nil
}

func (s *Service) picked(ctx context.Context, actor Actor, ref string) (string, error) {
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if err := ownJob(sess, actor.ID); err != nil {
			return err
		}
		return moveTo(sess, session.StatusOutForDelivery)
	})
	if err != nil {
		return "", s.lookupErr(err, "err.job_not_found")
	}
	s.emit(ctx, sess, session.StatusAssigned, sess.Status, actor.ID, "picked")

	name, _ := s.driverLabel(ctx, actor.ID)
	s.sendText(ctx, sess.CustomerID, "customer.out_for_delivery", texts.Vars{"REF": ref})
	s.sendText(ctx, s.cfg.StaffChatID, "staff.picked", texts.Vars{"REF": ref, "DRIVER": name})
	s.persist(ctx, sess, record.PhasePicked, func(rec *record.Record) { rec.DriverName = name })
	return s.t("ack.picked", nil), nil
}

// delivered closes the order; the session is dropped once DELIVERED.
func (s *Service) delivered(ctx context.Context, actor Actor, ref string) (string, error) {
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if err := ownJob(sess, actor.ID); err != nil {
			return err
		}
		if err := moveTo(sess, session.StatusDelivered); err != nil {
			return err
		}
		sess.StopTimers()
		return nil
	})
	if err != nil {
		return "", s.lookupErr(err, "err.job_not_found")
	}
	s.store.DeleteByRef(ref)
	s.emit(ctx, sess, session.StatusOutForDelivery, sess.Status, actor.ID, "delivered")

	name, _ := s.driverLabel(ctx, actor.ID)
	s.sendText(ctx, sess.CustomerID, "customer.delivered", texts.Vars{"REF": ref})
	s.sendText(ctx, s.cfg.StaffChatID, "staff.delivered", texts.Vars{"REF": ref, "DRIVER": name})
	s.persist(ctx, sess, record.PhaseDelivered, func(rec *record.Record) { rec.DriverName = name })
	return s.t("ack.delivered", nil), nil
}

// giveUp releases the job inside the give-up window and re-broadcasts it to
// everyone but the drivers who already quit.
func (s *Service) giveUp(ctx context.Context, actor Actor, ref string) (string, error) {
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if err := ownJob(sess, actor.ID); err != nil {
			return err
		}
		if sess.Status != session.StatusAssigned {
			return invalidState("err.invalid_state")
		}
		if s.clock.Now().After(sess.GiveupUntil) {
			return expired("err.window_expired")
		}
		if err := moveTo(sess, session.StatusDispatching); err != nil {
			return err
		}
		sess.AssignedDriverID = 0
		sess.GiveupUntil = time.Time{}
		if !slices.Contains(sess.ExcludedDrivers, actor.ID) {
			sess.ExcludedDrivers = append(sess.ExcludedDrivers, actor.ID)
		}
		s.openDispatch(sess)
		return nil
	})
	if err != nil {
		return "", s.lookupErr(err, "err.job_not_found")
	}
	s.emit(ctx, sess, session.StatusAssigned, sess.Status, actor.ID, "giveup")

	name, _ := s.driverLabel(ctx, actor.ID)
	s.sendText(ctx, s.cfg.StaffChatID, "staff.driver_gave_up", texts.Vars{"REF": ref, "DRIVER": name})
	s.broadcast(ctx, sess)
	return s.t("ack.gave_up", nil), nil
}
