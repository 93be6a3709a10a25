package order

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/m3rciful/dispatchbot/bot/action"
	"github.com/m3rciful/dispatchbot/bot/intake"
	"github.com/m3rciful/dispatchbot/bot/notify"
	"github.com/m3rciful/dispatchbot/bot/record"
	"github.com/m3rciful/dispatchbot/bot/session"
	"github.com/m3rciful/dispatchbot/bot/texts"
	"github.com/m3rciful/dispatchbot/core/logger"
)

// HandleText processes a private text message from a customer.
func (s *Service) HandleText(ctx context.Context, actor Actor, text string) error {
	text = strings.TrimSpace(text)
	current, hasSession := s.store.Get(actor.ID)
	if hasSession {
		ctx = logger.WithRef(ctx, current.Ref)
	}

	if hasSession && current.Status == session.StatusAwaitingTINText {
		return s.saveTIN(ctx, actor, text)
	}

	switch s.anchors.Classify(text, s.cfg.Intake) {
	case intake.KindOrder:
		if !hasSession {
			_, err := s.startOrder(ctx, actor, text, nil, "customer.order_received", nil)
			return err
		}
		return s.stageSummary(ctx, actor, text)
	case intake.KindQuestion:
		s.forwardQuestion(ctx, actor, current, hasSession, text)
		return nil
	default:
		s.sendText(ctx, actor.ID, "customer.fallback", texts.Vars{"SUPPORT_PHONE": s.cfg.SupportPhone})
		return nil
	}
}

// startOrder creates the session for a classified summary. A non-nil
// superseded carries the refs inherited from the replaced session.
func (s *Service) startOrder(ctx context.Context, actor Actor, text string, superseded []string, key string, vars texts.Vars) (session.Session, error) {
	fields := s.anchors.ParseOrderFields(text)
	created, replaced, err := s.store.Create(actor.ID, func(sess *session.Session) {
		sess.CustomerName = actor.Name
		sess.Summary = text
		sess.Fields = fields
		sess.SourceRef = fields.Ref
		sess.SupersededRefs = slices.Clone(superseded)
	})
	if err != nil {
		return session.Session{}, err
	}
	ctx = logger.WithRef(ctx, created.Ref)
	if replaced != nil {
		// the caller already claimed the staged text; nothing else may hold it
		logger.Debug(ctx, logger.ComponentSession, "session.replaced",
			slog.String("status_from", string(replaced.Status)),
		)
	}

	s.emit(ctx, created, "", created.Status, actor.ID, "intake")
	s.persist(ctx, created, record.PhaseIntake, nil)

	if vars == nil {
		vars = texts.Vars{}
	}
	vars["REF"] = created.Ref
	vars["TOTAL"] = fields.Total.String()
	body := s.t("customer.order_received", vars)
	if key != "customer.order_received" {
		body = s.t(key, vars) + "\n\n" + body
	}
	s.send(ctx, actor.ID, notify.Message{Text: body, Buttons: s.paymentButtons(created.Ref)})
	return created, nil
}

func (s *Service) paymentButtons(ref string) [][]notify.Button {
	return [][]notify.Button{notify.Row(
		notify.Button{Text: s.t("btn.telebirr", nil), Action: action.With(action.Pay, ref, string(session.MethodTelebirr))},
		notify.Button{Text: s.t("btn.bank", nil), Action: action.With(action.Pay, ref, string(session.MethodBank))},
	)}
}

// stageSummary parks a second summary until the customer decides.
func (s *Service) stageSummary(ctx context.Context, actor Actor, text string) error {
	sess, err := s.store.Update(actor.ID, func(sess *session.Session) error {
		sess.PendingNewSummary = text
		return nil
	})
	if err != nil {
		return err
	}
	s.send(ctx, actor.ID, notify.Message{
		Text: s.t("customer.supersede_prompt", texts.Vars{"REF": sess.Ref, "STATUS": string(sess.Status)}),
		Buttons: [][]notify.Button{notify.Row(
			notify.Button{Text: s.t("btn.clear_previous", nil), Action: action.New(action.ClearPrevious, sess.Ref)},
			notify.Button{Text: s.t("btn.keep_continue", nil), Action: action.New(action.KeepPrevious, sess.Ref)},
		)},
	})
	return nil
}

// resolveStaged promotes the staged summary to a new session. clear records
// the old ref as superseded and tells staff; keep archives it silently.
func (s *Service) resolveStaged(ctx context.Context, actor Actor, ref string, clear bool) (string, error) {
	var staged string
	old, err := s.store.UpdateByRef(ref, func(sess *session.Session) error {
		if sess.CustomerID != actor.ID {
			return notAllowed("err.not_allowed")
		}
		if sess.PendingNewSummary == "" {
			return invalidState("err.invalid_state")
		}
		staged = sess.PendingNewSummary
		sess.PendingNewSummary = ""
		return nil
	})
	if err != nil {
		return "", s.lookupErr(err, "err.not_found")
	}

	refs := slices.Clone(old.SupersededRefs)
	key := "customer.continued"
	note := "archived"
	if clear {
		refs = append(refs, old.Ref)
		key = "customer.superseded"
		note = "superseded"
	}

	created, err := s.startOrder(ctx, actor, staged, refs, key, texts.Vars{"OLD_REF": old.Ref})
	if err != nil {
		return "", err
	}
	s.closeReplaced(ctx, old, created.Ref, note)

	if clear {
		s.sendText(ctx, s.cfg.StaffChatID, "staff.superseded", texts.Vars{
			"NAME":    displayName(old),
			"OLD_REF": old.Ref,
			"REF":     created.Ref,
		})
	}
	return s.t("ack.supersede", nil), nil
}

// closeReplaced settles the bookkeeping of a session replaced by a new one.
func (s *Service) closeReplaced(ctx context.Context, old session.Session, newRef, note string) {
	ctx = logger.WithRef(ctx, old.Ref)
	if s.undo != nil {
		s.undo.Cancel(old.Ref, undoApprove)
	}
	if old.AssignedDriverID != 0 {
		s.sendText(ctx, old.AssignedDriverID, "driver.canceled", texts.Vars{"REF": old.Ref})
	}
	from := old.Status
	old.Status = session.StatusCanceled
	s.emit(ctx, old, from, old.Status, old.CustomerID, note+" by "+newRef)
	s.persist(ctx, old, record.PhaseIntake, nil)
}

func (s *Service) forwardQuestion(ctx context.Context, actor Actor, current session.Session, hasSession bool, text string) {
	ref := intake.Placeholder
	if hasSession {
		ref = current.Ref
	}
	name := actor.Name
	if name == "" {
		name = strconv.FormatInt(actor.ID, 10)
	}
	s.sendText(ctx, s.cfg.StaffChatID, "staff.question", texts.Vars{
		"NAME":        name,
		"CUSTOMER_ID": strconv.FormatInt(actor.ID, 10),
		"REF":         ref,
		"TEXT":        logger.SanitizeLimit(text, 1000),
	})
	s.sendText(ctx, actor.ID, "customer.question_forwarded", texts.Vars{"SUPPORT_PHONE": s.cfg.SupportPhone})
}
