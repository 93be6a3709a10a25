// Package order drives the order state machine: intake, payment, staff
// review with an undoable hold, driver dispatch and delivery.
package order

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/dispatchbot/bot/dispatch"
	"github.com/m3rciful/dispatchbot/bot/intake"
	"github.com/m3rciful/dispatchbot/bot/milestone"
	"github.com/m3rciful/dispatchbot/bot/notify"
	"github.com/m3rciful/dispatchbot/bot/receipt"
	"github.com/m3rciful/dispatchbot/bot/record"
	"github.com/m3rciful/dispatchbot/bot/session"
	"github.com/m3rciful/dispatchbot/bot/texts"
	"github.com/m3rciful/dispatchbot/bot/undo"
	"github.com/m3rciful/dispatchbot/core/logger"
)

// Defaults for Settings.
const (
	DefaultHold         = 60 * time.Second
	DefaultDriverWindow = 30 * time.Minute
	DefaultGiveUpWindow = 2 * time.Minute
)

// undoApprove is the undo window action guarding the approval hold.
const undoApprove = "approve"

// Broadcaster offers a job to the drivers.
type Broadcaster interface {
	Broadcast(ctx context.Context, job dispatch.Job, exclude []int64) (dispatch.Report, error)
}

// DriverDirectory resolves registered drivers.
type DriverDirectory interface {
	Get(ctx context.Context, id int64) (dispatch.Driver, error)
}

// Authorizer decides who may review payments.
type Authorizer interface {
	IsStaff(ctx context.Context, userID int64) (bool, error)
}

// Recorder persists order rows per phase.
type Recorder interface {
	Persist(ctx context.Context, rec record.Record, phase record.Phase) (int64, error)
}

// Settings are the tunables of the flow.
type Settings struct {
	StaffChatID  int64
	OwnerID      int64
	SupportPhone string

	Hold         time.Duration
	DriverWindow time.Duration
	GiveUpWindow time.Duration
	TINEnabled   bool

	Intake intake.Options
}

// Deps wires the service. Records, Milestones and Receipts are optional.
type Deps struct {
	Store       *session.Store
	Undo        *undo.Registry
	Anchors     *intake.Anchors
	Notifier    notify.Notifier
	Broadcaster Broadcaster
	Drivers     DriverDirectory
	Staff       Authorizer
	Records     Recorder
	Milestones  milestone.Recorder
	Receipts    receipt.Ledger
	Texts       texts.Translator
	Settings    Settings
}

// Actor is whoever triggered an event.
type Actor struct {
	ID     int64
	ChatID int64
	Name   string
}

// Service is the order state machine.
type Service struct {
	store       *session.Store
	undo        *undo.Registry
	anchors     *intake.Anchors
	notifier    notify.Notifier
	broadcaster Broadcaster
	drivers     DriverDirectory
	staff       Authorizer
	records     Recorder
	milestones  milestone.Recorder
	receipts    receipt.Ledger
	texts       texts.Translator
	clock       clockwork.Clock
	cfg         Settings
}

// New validates deps and builds the service.
func New(d Deps) (*Service, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("order: nil session store")
	case d.Notifier == nil:
		return nil, errors.New("order: nil notifier")
	case d.Broadcaster == nil:
		return nil, errors.New("order: nil broadcaster")
	case d.Drivers == nil:
		return nil, errors.New("order: nil driver directory")
	case d.Staff == nil:
		return nil, errors.New("order: nil staff authorizer")
	}
	cfg := d.Settings
	if cfg.Hold <= 0 {
		cfg.Hold = DefaultHold
	}
	if cfg.DriverWindow <= 0 {
		cfg.DriverWindow = DefaultDriverWindow
	}
	if cfg.GiveUpWindow <= 0 {
		cfg.GiveUpWindow = DefaultGiveUpWindow
	}
	if cfg.Intake.MinTextLength <= 0 {
		cfg.Intake.MinTextLength = intake.DefaultMinTextLength
	}

	s := &Service{
		store:       d.Store,
		undo:        d.Undo,
		anchors:     d.Anchors,
		notifier:    d.Notifier,
		broadcaster: d.Broadcaster,
		drivers:     d.Drivers,
		staff:       d.Staff,
		records:     d.Records,
		milestones:  d.Milestones,
		receipts:    d.Receipts,
		texts:       d.Texts,
		clock:       d.Store.Clock(),
		cfg:         cfg,
	}
	if s.undo == nil {
		s.undo = undo.NewRegistry(s.clock)
	}
	if s.anchors == nil {
		s.anchors = intake.MustDefault()
	}
	if s.receipts == nil {
		s.receipts = receipt.NewMemory(s.clock)
	}
	if s.texts == nil {
		s.texts = texts.Default()
	}
	return s, nil
}

// Store exposes the live sessions.
func (s *Service) Store() *session.Store { return s.store }

// Answer renders the short text shown for a failed action. Rejections
// without a text key are answered silently.
func (s *Service) Answer(err error) string {
	if r, ok := IsRejection(err); ok {
		if r.TextKey == "" {
			return ""
		}
		return s.t(r.TextKey, nil)
	}
	return s.t("common.error", nil)
}

func (s *Service) t(key string, vars texts.Vars) string {
	return s.texts.T(key, vars)
}

// moveTo applies a table-checked transition.
func moveTo(sess *session.Session, to session.Status) error {
	if !session.CanTransition(sess.Status, to) {
		return invalidState("err.invalid_state")
	}
	sess.Status = to
	return nil
}

func (s *Service) requireStaff(ctx context.Context, actor Actor) error {
	ok, err := s.staff.IsStaff(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return notAllowed("err.not_allowed")
	}
	return nil
}

func (s *Service) send(ctx context.Context, chatID int64, msg notify.Message) int {
	if chatID == 0 {
		return 0
	}
	id, err := s.notifier.Send(ctx, chatID, msg)
	if err != nil {
		logger.Warn(ctx, logger.ComponentOrder, "notify.send",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	return id
}

func (s *Service) sendText(ctx context.Context, chatID int64, key string, vars texts.Vars) int {
	return s.send(ctx, chatID, notify.Message{Text: s.t(key, vars)})
}

// editOrSend replaces an earlier message, falling back to a new one.
func (s *Service) editOrSend(ctx context.Context, chatID int64, messageID int, msg notify.Message) {
	if messageID != 0 {
		err := s.notifier.Edit(ctx, chatID, messageID, msg)
		if err == nil {
			return
		}
		logger.Debug(ctx, logger.ComponentOrder, "notify.edit",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	s.send(ctx, chatID, msg)
}

// emit logs a transition and records its milestone.
func (s *Service) emit(ctx context.Context, sess session.Session, from, to session.Status, actorID int64, note string) {
	if from == to {
		return
	}
	logger.Info(ctx, logger.ComponentOrder, "order.transition",
		slog.String("ref", sess.Ref),
		slog.String("status_from", string(from)),
		slog.String("status_to", string(to)),
		slog.Int64("actor_id", actorID),
	)
	if s.milestones == nil {
		return
	}
	e := milestone.NewEvent(sess.Ref, sess.CustomerID, string(from), string(to), actorID, note, s.clock.Now())
	if err := s.milestones.Record(ctx, e); err != nil {
		logger.Warn(ctx, logger.ComponentMilestone, "milestone.record",
			slog.String("status", "fail"),
			slog.String("ref", sess.Ref),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

// persist upserts the order row; failures are logged only.
func (s *Service) persist(ctx context.Context, sess session.Session, phase record.Phase, extra func(*record.Record)) {
	if s.records == nil {
		return
	}
	rec := recordOf(sess)
	if extra != nil {
		extra(&rec)
	}
	if _, err := s.records.Persist(ctx, rec, phase); err != nil {
		logger.Warn(ctx, logger.ComponentRecord, "record.persist",
			slog.String("status", "fail"),
			slog.String("ref", sess.Ref),
			slog.String("phase", string(phase)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func recordOf(sess session.Session) record.Record {
	f := sess.Fields
	name := f.CustomerName
	if intake.IsEmpty(name) {
		name = sess.CustomerName
	}
	return record.Record{
		Ref:          sess.Ref,
		SourceRef:    sess.SourceRef,
		CustomerID:   sess.CustomerID,
		CustomerName: name,
		Phone:        f.Phone,
		Area:         f.Area,
		MapURL:       f.MapURL,
		Qty:          f.Qty,
		Total:        f.Total,
		Delivery:     f.Delivery,
		Method:       string(sess.Method),
		TIN:          sess.TIN,
		DriverID:     sess.AssignedDriverID,
		Status:       string(sess.Status),
		Summary:      sess.Summary,
	}
}

// driverLabel resolves a driver for display.
func (s *Service) driverLabel(ctx context.Context, id int64) (name, phone string) {
	d, err := s.drivers.Get(ctx, id)
	if err != nil {
		return strconv.FormatInt(id, 10), intake.Placeholder
	}
	return d.Name, d.Phone
}

func refContext(ref string) context.Context {
	return logger.WithRef(context.Background(), ref)
}

func displayName(sess session.Session) string {
	if !intake.IsEmpty(sess.Fields.CustomerName) {
		return sess.Fields.CustomerName
	}
	if sess.CustomerName != "" {
		return sess.CustomerName
	}
	return strconv.FormatInt(sess.CustomerID, 10)
}
