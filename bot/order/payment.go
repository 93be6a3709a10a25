package order

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/dispatchbot/bot/action"
	"github.com/m3rciful/dispatchbot/bot/intake"
	"github.com/m3rciful/dispatchbot/bot/notify"
	"github.com/m3rciful/dispatchbot/bot/record"
	"github.com/m3rciful/dispatchbot/bot/session"
	"github.com/m3rciful/dispatchbot/bot/texts"
	"github.com/m3rciful/dispatchbot/core/logger"
)

// Photo is an uploaded image.
type Photo struct {
	FileID    string
	UniqueID  string
	Forwarded bool
}

func (s *Service) choosePayment(ctx context.Context, actor Actor, ref, arg string) (string, error) {
	method, ok := session.ParseMethod(arg)
	if !ok {
		return "", invalidState("common.unsupported_action")
	}
	var from session.Status
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if sess.CustomerID != actor.ID {
			return notAllowed("err.not_allowed")
		}
		if sess.Status != session.StatusAwaitingPayment && sess.Status != session.StatusAwaitingReceipt {
			return invalidState("err.invalid_state")
		}
		from = sess.Status
		sess.Method = method
		if sess.Status == session.StatusAwaitingPayment {
			return moveTo(sess, session.StatusAwaitingReceipt)
		}
		return nil
	})
	if err != nil {
		// a tap on a dropped order is answered without a reason
		return "", s.lookupErr(err, "")
	}

	s.emit(ctx, sess, from, sess.Status, actor.ID, string(method))
	s.persist(ctx, sess, record.PhaseIntake, nil)

	key := "customer.pay_telebirr"
	if method == session.MethodBank {
		key = "customer.pay_bank"
	}
	s.sendText(ctx, actor.ID, key, texts.Vars{"REF": sess.Ref, "TOTAL": sess.Fields.Total.String()})
	return s.t("ack.method", nil), nil
}

// HandlePhoto processes a receipt upload.
func (s *Service) HandlePhoto(ctx context.Context, actor Actor, photo Photo) error {
	current, ok := s.store.Get(actor.ID)
	if !ok || (current.Status != session.StatusAwaitingReceipt && current.Status != session.StatusRejected) {
		s.sendText(ctx, actor.ID, "customer.no_receipt_expected", texts.Vars{"SUPPORT_PHONE": s.cfg.SupportPhone})
		return nil
	}
	ctx = logger.WithRef(ctx, current.Ref)

	duplicate := false
	if photo.UniqueID != "" {
		seen, err := s.receipts.Seen(ctx, photo.UniqueID, current.Ref)
		if err != nil {
			logger.Warn(ctx, logger.ComponentReceipt, "receipt.seen",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
		duplicate = seen
	}

	next := session.StatusAwaitingReview
	if s.cfg.TINEnabled {
		next = session.StatusAwaitingTIN
	}
	var from session.Status
	sess, err := s.store.Update(actor.ID, func(sess *session.Session) error {
		if sess.Ref != current.Ref {
			return errStale
		}
		from = sess.Status
		if err := moveTo(sess, next); err != nil {
			return err
		}
		sess.Receipt = session.Receipt{
			FileID:    photo.FileID,
			UniqueID:  photo.UniqueID,
			Duplicate: duplicate,
			Forwarded: photo.Forwarded,
		}
		sess.CreatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		if errors.Is(err, errStale) || errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}

	logger.Info(ctx, logger.ComponentReceipt, "receipt.received",
		slog.Bool("duplicate", duplicate),
		slog.Bool("forwarded", photo.Forwarded),
	)
	s.emit(ctx, sess, from, sess.Status, actor.ID, "receipt")
	s.sendText(ctx, actor.ID, "customer.receipt_received", texts.Vars{"REF": sess.Ref})

	if next == session.StatusAwaitingTIN {
		s.send(ctx, actor.ID, notify.Message{
			Text: s.t("customer.tin_prompt", texts.Vars{"REF": sess.Ref}),
			Buttons: [][]notify.Button{notify.Row(
				notify.Button{Text: s.t("btn.yes", nil), Action: action.New(action.TINYes, sess.Ref)},
				notify.Button{Text: s.t("btn.no", nil), Action: action.New(action.TINNo, sess.Ref)},
			)},
		})
		return nil
	}
	s.postReview(ctx, sess)
	return nil
}

func (s *Service) answerTIN(ctx context.Context, actor Actor, ref string, wants bool) (string, error) {
	next := session.StatusAwaitingReview
	if wants {
		next = session.StatusAwaitingTINText
	}
	sess, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if sess.CustomerID != actor.ID {
			return notAllowed("err.not_allowed")
		}
		if sess.Status != session.StatusAwaitingTIN {
			return invalidState("err.invalid_state")
		}
		if !wants {
			sess.CreatedAt = s.clock.Now()
		}
		return moveTo(sess, next)
	})
	if err != nil {
		return "", s.lookupErr(err, "err.not_found")
	}
	s.emit(ctx, sess, session.StatusAwaitingTIN, next, actor.ID, "tin")

	if wants {
		s.send(ctx, actor.ID, notify.Message{Text: s.t("customer.tin_ask", nil), ForceReply: true})
	} else {
		s.postReview(ctx, sess)
	}
	return s.t("ack.tin", nil), nil
}

func (s *Service) saveTIN(ctx context.Context, actor Actor, text string) error {
	tin := strings.TrimSpace(text)
	if tin == "" {
		s.send(ctx, actor.ID, notify.Message{Text: s.t("customer.tin_ask", nil), ForceReply: true})
		return nil
	}
	sess, err := s.store.Update(actor.ID, func(sess *session.Session) error {
		if err := moveTo(sess, session.StatusAwaitingReview); err != nil {
			return err
		}
		sess.TIN = logger.SanitizeLimit(tin, 64)
		sess.CreatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, sess, session.StatusAwaitingTINText, session.StatusAwaitingReview, actor.ID, "tin")
	s.persist(ctx, sess, record.PhaseIntake, nil)
	s.sendText(ctx, actor.ID, "customer.tin_saved", nil)
	s.postReview(ctx, sess)
	return nil
}

// postReview sends the receipt and the review card to the staff chat.
func (s *Service) postReview(ctx context.Context, sess session.Session) {
	s.send(ctx, s.cfg.StaffChatID, s.reviewMessage(sess, "staff.review", nil))
}

func (s *Service) reviewMessage(sess session.Session, key string, vars texts.Vars) notify.Message {
	f := sess.Fields
	if vars == nil {
		vars = texts.Vars{}
	}
	vars["REF"] = sess.Ref
	vars["NAME"] = displayName(sess)
	vars["PHONE"] = orPlaceholder(f.Phone)
	vars["AREA"] = orPlaceholder(f.Area)
	vars["TOTAL"] = f.Total.String()
	vars["METHOD"] = s.methodLabel(sess.Method)

	var lines []string
	if key != "staff.review" {
		lines = append(lines, s.t(key, vars))
	}
	lines = append(lines, s.t("staff.review", vars))
	if sess.Receipt.Duplicate {
		lines = append(lines, s.t("staff.flag_duplicate", nil))
	}
	if sess.Receipt.Forwarded {
		lines = append(lines, s.t("staff.flag_forwarded", nil))
	}
	if sess.TIN != "" {
		lines = append(lines, s.t("staff.tin", texts.Vars{"TIN": sess.TIN}))
	}
	return notify.Message{
		Text:    strings.Join(lines, "\n"),
		PhotoID: sess.Receipt.FileID,
		Buttons: s.reviewButtons(sess.Ref),
	}
}

func (s *Service) reviewButtons(ref string) [][]notify.Button {
	return [][]notify.Button{notify.Row(
		notify.Button{Text: s.t("btn.approve", nil), Action: action.New(action.Approve, ref)},
		notify.Button{Text: s.t("btn.reject", nil), Action: action.New(action.Reject, ref)},
	)}
}

func (s *Service) methodLabel(m session.Method) string {
	if m == session.MethodNone {
		return intake.Placeholder
	}
	return s.t("method."+string(m), nil)
}

// lookupErr maps a missing session to a rejection.
func (s *Service) lookupErr(err error, key string) error {
	if errors.Is(err, session.ErrNotFound) {
		return notFound(key)
	}
	return err
}

func orPlaceholder(v string) string {
	if intake.IsEmpty(v) {
		return intake.Placeholder
	}
	return v
}
