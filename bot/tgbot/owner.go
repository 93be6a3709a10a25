package tgbot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/dispatchbot/bot/dispatch"
	"github.com/m3rciful/dispatchbot/bot/order"
	"github.com/m3rciful/dispatchbot/bot/record"
	"github.com/m3rciful/dispatchbot/bot/session"
	"github.com/m3rciful/dispatchbot/bot/texts"
	tghelpers "github.com/m3rciful/dispatchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Exporter reads and archives order rows.
type Exporter interface {
	All(ctx context.Context, f record.Filter) ([]record.Record, error)
	ArchiveAndClear(ctx context.Context, deliver func(csv []byte) error) (int, error)
}

// ownerCommands serves the owner-only commands. Access is enforced by the
// AdminOnly command middleware.
type ownerCommands struct {
	svc     *order.Service
	roster  dispatch.Roster
	records Exporter
	texts   texts.Translator
	clock   clockwork.Clock
}

func (o *ownerCommands) t(key string, vars texts.Vars) string { return o.texts.T(key, vars) }

func (o *ownerCommands) reply(c tele.Context, text string) error {
	return tghelpers.SendText(c, text)
}

// refCommand runs fn with the single <ref> argument of cmd.
func (o *ownerCommands) refCommand(cmd string, fn func(context.Context, order.Actor, string) (string, error)) tele.HandlerFunc {
	return func(c tele.Context) error {
		args := c.Args()
		if len(args) != 1 {
			return o.reply(c, o.t("owner.usage_ref", texts.Vars{"CMD": cmd}))
		}
		out, err := fn(tghelpers.BuildContext(c), actorOf(c), strings.TrimSpace(args[0]))
		if err != nil {
			if _, ok := order.IsRejection(err); ok {
				return o.reply(c, o.svc.Answer(err))
			}
			return err
		}
		return o.reply(c, out)
	}
}

func (o *ownerCommands) revert() tele.HandlerFunc {
	return o.refCommand("/revert", o.svc.Revert)
}

func (o *ownerCommands) forceApprove() tele.HandlerFunc {
	return o.refCommand("/forceapprove", o.svc.ForceApprove)
}

var errDriverArgs = errors.New("usage")

// parseDriverArgs reads "<telegram_id> <phone> <name...>".
func parseDriverArgs(args []string) (dispatch.Driver, error) {
	if len(args) < 3 {
		return dispatch.Driver{}, errDriverArgs
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id == 0 {
		return dispatch.Driver{}, errDriverArgs
	}
	return dispatch.Driver{
		ID:    id,
		Phone: strings.TrimSpace(args[1]),
		Name:  strings.TrimSpace(strings.Join(args[2:], " ")),
	}, nil
}

func (o *ownerCommands) addDriver(c tele.Context) error {
	d, err := parseDriverArgs(c.Args())
	if err != nil {
		return o.reply(c, o.t("owner.usage_adddriver", nil))
	}
	if err := o.roster.Upsert(tghelpers.BuildContext(c), d); err != nil {
		return err
	}
	return o.reply(c, o.t("owner.driver_added", texts.Vars{"DRIVER": d.Name, "ID": strconv.FormatInt(d.ID, 10)}))
}

func (o *ownerCommands) removeDriver(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return o.reply(c, o.t("owner.usage_removedriver", nil))
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return o.reply(c, o.t("owner.bad_driver_id", nil))
	}
	removed, err := o.roster.Remove(tghelpers.BuildContext(c), id)
	if err != nil {
		return err
	}
	vars := texts.Vars{"ID": args[0]}
	if !removed {
		return o.reply(c, o.t("owner.driver_unknown", vars))
	}
	return o.reply(c, o.t("owner.driver_removed", vars))
}

func (o *ownerCommands) listDrivers(c tele.Context) error {
	drivers, err := o.roster.List(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	if len(drivers) == 0 {
		return o.reply(c, o.t("owner.drivers_empty", nil))
	}
	return o.reply(c, o.t("owner.drivers", texts.Vars{
		"COUNT": strconv.Itoa(len(drivers)),
		"LINES": driverLines(drivers),
	}))
}

func driverLines(drivers []dispatch.Driver) string {
	lines := make([]string, len(drivers))
	for i, d := range drivers {
		lines[i] = fmt.Sprintf("• %s (%d) %s", d.Name, d.ID, d.Phone)
	}
	return strings.Join(lines, "\n")
}

func (o *ownerCommands) export(c tele.Context) error {
	recs, err := o.records.All(tghelpers.BuildContext(c), record.Filter{})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return o.reply(c, o.t("owner.export_empty", nil))
	}
	var buf bytes.Buffer
	if err := record.WriteCSV(&buf, recs); err != nil {
		return err
	}
	return c.Send(o.csvDocument(buf.Bytes()))
}

// exportClear sends the archive first; rows are deleted only once Telegram
// accepted the document.
func (o *ownerCommands) exportClear(c tele.Context) error {
	n, err := o.records.ArchiveAndClear(tghelpers.BuildContext(c), func(csv []byte) error {
		return c.Send(o.csvDocument(csv))
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return o.reply(c, o.t("owner.export_empty", nil))
	}
	return o.reply(c, o.t("owner.export_cleared", texts.Vars{"COUNT": strconv.Itoa(n)}))
}

func (o *ownerCommands) csvDocument(data []byte) *tele.Document {
	return &tele.Document{
		File:     tele.FromReader(bytes.NewReader(data)),
		FileName: exportName(o.clock.Now()),
		MIME:     "text/csv",
	}
}

func exportName(now time.Time) string {
	return "orders-" + now.UTC().Format("20060102-150405") + ".csv"
}

func (o *ownerCommands) sessions(c tele.Context) error {
	counts := o.svc.Store().Counts()
	total := 0
	for _, n := range counts {
		total += n
	}
	return o.reply(c, o.t("owner.sessions", texts.Vars{
		"COUNT": strconv.Itoa(total),
		"LINES": sessionLines(counts),
	}))
}

func sessionLines(counts map[session.Status]int) string {
	keys := slices.Sorted(maps.Keys(counts))
	lines := make([]string, 0, len(keys))
	for _, st := range keys {
		lines = append(lines, fmt.Sprintf("%s: %d", st, counts[st]))
	}
	return strings.Join(lines, "\n")
}
