package dispatch

import (
	"strconv"
	"time"

	"github.com/m3rciful/dispatchbot/bot/action"
	"github.com/m3rciful/dispatchbot/bot/intake"
	"github.com/m3rciful/dispatchbot/bot/notify"
	"github.com/m3rciful/dispatchbot/bot/texts"
)

// JobCard is the broadcast offer with an Accept button.
func JobCard(tr texts.Translator, job Job) notify.Message {
	return notify.Message{
		Text: tr.T("driver.job", jobVars(job)),
		Buttons: [][]notify.Button{
			notify.Row(notify.Button{Text: tr.T("btn.accept", nil), Action: action.New(action.Accept, job.Ref)}),
		},
	}
}

// AssignedCard is sent to the driver who won the job. It carries the
// customer contact and the progress buttons.
func AssignedCard(tr texts.Translator, job Job, giveupUntil time.Time) notify.Message {
	vars := jobVars(job)
	vars["NAME"] = job.Fields.CustomerName
	vars["PHONE"] = job.Fields.Phone
	vars["GIVEUP_UNTIL"] = giveupUntil.Format("15:04")
	return notify.Message{
		Text: tr.T("driver.assigned", vars),
		Buttons: [][]notify.Button{
			notify.Row(
				notify.Button{Text: tr.T("btn.picked", nil), Action: action.New(action.Picked, job.Ref)},
				notify.Button{Text: tr.T("btn.delivered", nil), Action: action.New(action.Delivered, job.Ref)},
			),
			notify.Row(notify.Button{Text: tr.T("btn.giveup", nil), Action: action.New(action.GiveUp, job.Ref)}),
		},
	}
}

func jobVars(job Job) texts.Vars {
	f := job.Fields
	qty := intake.Placeholder
	if f.Qty > 0 {
		qty = strconv.Itoa(f.Qty)
	}
	return texts.Vars{
		"REF":      job.Ref,
		"AREA":     orPlaceholder(f.Area),
		"MAP":      orPlaceholder(f.MapURL),
		"QTY":      qty,
		"TOTAL":    f.Total.String(),
		"DELIVERY": f.Delivery.String(),
	}
}

func orPlaceholder(s string) string {
	if intake.IsEmpty(s) {
		return intake.Placeholder
	}
	return s
}
