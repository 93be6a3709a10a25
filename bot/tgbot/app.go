package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/dispatchbot/bot/action"
	"github.com/m3rciful/dispatchbot/bot/config"
	"github.com/m3rciful/dispatchbot/bot/dispatch"
	"github.com/m3rciful/dispatchbot/bot/intake"
	"github.com/m3rciful/dispatchbot/bot/milestone"
	"github.com/m3rciful/dispatchbot/bot/order"
	"github.com/m3rciful/dispatchbot/bot/receipt"
	"github.com/m3rciful/dispatchbot/bot/record"
	"github.com/m3rciful/dispatchbot/bot/session"
	"github.com/m3rciful/dispatchbot/bot/texts"
	"github.com/m3rciful/dispatchbot/bot/undo"
	"github.com/m3rciful/dispatchbot/core/bootstrap"
	"github.com/m3rciful/dispatchbot/core/logger"
	coretelegram "github.com/m3rciful/dispatchbot/core/telegram"
	"github.com/m3rciful/dispatchbot/core/telegram/commands"
	"github.com/m3rciful/dispatchbot/core/telegram/router"
	tgsender "github.com/m3rciful/dispatchbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const (
	// receiptPruneEvery is the period of the in-process ledger cleanup.
	receiptPruneEvery = time.Hour

	senderRetries = 3
	senderBudget  = 20 * time.Second
)

// App is the wired bot.
type App struct {
	cfg   *config.Config
	db    *sqlx.DB
	clock clockwork.Clock

	client    *Client
	texts     texts.Translator
	store     *session.Store
	svc       *order.Service
	roster    dispatch.Roster
	records   *record.Store
	redis     *redis.Client
	publisher *milestone.Publisher
	sched     gocron.Scheduler
}

// Bootstrap runs the core pipeline (logger, database, migrations, driver
// seeding) and wires the order service with its collaborators.
func Bootstrap(cfg *config.Config) (app *App, err error) {
	if cfg == nil {
		return nil, errors.New("tgbot: nil config")
	}
	seeds := make([]dispatch.Driver, 0, len(cfg.Drivers))
	for _, d := range cfg.Drivers {
		seeds = append(seeds, dispatch.Driver{ID: d.ID, Name: d.Name, Phone: d.Phone})
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Seeders:  []bootstrap.Seeder{bootstrap.SeederFunc(dispatch.Seeder(seeds))},
	})
	if err != nil {
		return nil, err
	}

	app = &App{cfg: cfg, db: res.DB, clock: clockwork.NewRealClock(), client: &Client{}}
	defer func() {
		if err != nil {
			_ = app.close()
		}
	}()

	if app.texts, err = texts.Load(cfg.Texts.Path); err != nil {
		return nil, err
	}
	anchors, err := intake.Compile(cfg.Intake.Anchors, cfg.Intake.CountryCode)
	if err != nil {
		return nil, err
	}
	if app.sched, err = gocron.NewScheduler(); err != nil {
		return nil, fmt.Errorf("tgbot: scheduler: %w", err)
	}

	app.store = session.NewStore(session.Options{
		Clock:      app.clock,
		SessionTTL: cfg.Flow.SessionTTL(),
		ButtonTTL:  cfg.Flow.ButtonTTL(),
		RefStyle:   session.ParseRefStyle(cfg.Flow.RefStyle),
	})
	app.roster = dispatch.NewSQLRoster(res.DB)
	app.records = record.NewStore(res.DB, app.clock)

	ledger, err := app.receiptLedger()
	if err != nil {
		return nil, err
	}
	milestones, err := app.milestoneSinks()
	if err != nil {
		return nil, err
	}

	messenger := NewMessenger(app.client)
	app.svc, err = order.New(order.Deps{
		Store:       app.store,
		Undo:        undo.NewRegistry(app.clock),
		Anchors:     anchors,
		Notifier:    messenger,
		Broadcaster: dispatch.NewBroadcaster(app.roster, messenger, app.texts, cfg.Flow.BroadcastConcurrency),
		Drivers:     app.roster,
		Staff:       NewStaffAuthorizer(app.client, cfg.Staff.ChatID, cfg.Staff.AdminsOnly),
		Records:     app.records,
		Milestones:  milestones,
		Receipts:    ledger,
		Texts:       app.texts,
		Settings: order.Settings{
			StaffChatID:  cfg.Staff.ChatID,
			OwnerID:      cfg.Telegram.AdminID,
			SupportPhone: cfg.Support.Phone,
			Hold:         cfg.Flow.Hold(),
			DriverWindow: cfg.Flow.DriverWindow(),
			GiveUpWindow: cfg.Flow.GiveUpWindow(),
			TINEnabled:   cfg.Flow.TINEnabled,
			Intake:       cfg.Intake.Options(),
		},
	})
	if err != nil {
		return nil, err
	}

	if _, err = app.store.ScheduleSweep(app.sched, cfg.Flow.SweepInterval(), app.svc.Expire); err != nil {
		return nil, fmt.Errorf("tgbot: schedule sweep: %w", err)
	}
	return app, nil
}

// receiptLedger returns the redis ledger when configured, otherwise an
// in-process one pruned by the scheduler.
func (a *App) receiptLedger() (receipt.Ledger, error) {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		mem := receipt.NewMemory(a.clock)
		if _, err := mem.SchedulePrune(a.sched, receiptPruneEvery, rc.ReceiptTTL()); err != nil {
			return nil, fmt.Errorf("tgbot: schedule receipt prune: %w", err)
		}
		return mem, nil
	}
	client, err := receipt.Dial(context.Background(), rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, err
	}
	a.redis = client
	logger.Info(context.Background(), logger.ComponentReceipt, "receipt.ledger",
		slog.String("backend", "redis"),
		slog.String("addr", rc.Addr),
	)
	return receipt.NewRedis(client, rc.ReceiptTTL()), nil
}

func (a *App) milestoneSinks() (milestone.Recorder, error) {
	sinks := milestone.Fanout{milestone.NewStore(a.db)}
	if a.cfg.AMQP.URL == "" {
		return sinks, nil
	}
	pub, err := milestone.DialPublisher(a.cfg.AMQP.URL, a.cfg.AMQP.Exchange)
	if err != nil {
		return nil, err
	}
	a.publisher = pub
	logger.Info(context.Background(), logger.ComponentMilestone, "milestone.publisher",
		slog.String("status", "ok"),
	)
	return append(sinks, pub), nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	h := &handlers{svc: a.svc, texts: a.texts, support: a.cfg.Support.Phone}
	owner := &ownerCommands{svc: a.svc, roster: a.roster, records: a.records, texts: a.texts, clock: a.clock}

	reg := coretelegram.NewRegistry()
	for _, kind := range action.Kinds() {
		if err := reg.RegisterCallback(string(kind), h.callback); err != nil {
			return coretelegram.RunOptions{}, err
		}
	}
	reg.SetCallbackNotFound(h.unknownCallback)
	reg.SetTextFallback(h.text)

	public := map[string]commands.Command{
		"/start":  {Handler: h.start, Description: "Start"},
		"/help":   {Handler: h.help, Description: "How ordering works"},
		"/cancel": {Handler: h.cancel, Description: "Cancel the active order"},
	}
	owned := map[string]commands.Command{
		"/revert":       {Handler: owner.revert(), Description: "Revert an order to awaiting receipt"},
		"/forceapprove": {Handler: owner.forceApprove(), Description: "Approve and dispatch without hold"},
		"/adddriver":    {Handler: owner.addDriver, Description: "Add or update a driver"},
		"/removedriver": {Handler: owner.removeDriver, Description: "Remove a driver"},
		"/drivers":      {Handler: owner.listDrivers, Description: "List drivers"},
		"/export":       {Handler: owner.export, Description: "Export orders as CSV"},
		"/export_clear": {Handler: owner.exportClear, Description: "Export orders and clear the table"},
		"/sessions":     {Handler: owner.sessions, Description: "Live sessions by status"},
	}
	for name, cmd := range owned {
		cmd.AdminOnly = true
		public[name] = cmd
	}
	for name, cmd := range public {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return coretelegram.RunOptions{}, err
		}
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return owner.reply(c, a.texts.T("owner.not_allowed", nil))
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{
		UnknownDocument: h.unknownDocument,
		Photo:           h.photo,
		Document:        h.document,
	})...)

	return coretelegram.RunOptions{
		Config: a.cfg.CoreConfig(),
		DispatcherOptions: tgsender.Options{
			MaxRetries:  senderRetries,
			MaxDuration: senderBudget,
		},
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), h.rateLimited),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt coretelegram.Runtime) error {
	if rt.Bot == nil {
		return errors.New("tgbot: runtime without bot")
	}
	a.client.Bind(rt.Bot)
	a.client.UseSender(rt.Dispatcher)
	a.sched.Start()
	logger.Info(ctx, logger.ComponentSession, "scheduler.start",
		slog.Int("jobs", len(a.sched.Jobs())),
	)
	return nil
}

func (a *App) stop(context.Context, coretelegram.Runtime) error {
	return a.close()
}

// close releases everything Bootstrap opened.
func (a *App) close() error {
	var errs []error
	if a.sched != nil {
		if err := a.sched.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db: %w", err))
		}
	}
	return errors.Join(errs...)
}
