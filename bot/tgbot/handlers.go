package tgbot

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/dispatchbot/bot/action"
	"github.com/m3rciful/dispatchbot/bot/order"
	"github.com/m3rciful/dispatchbot/bot/texts"
	"github.com/m3rciful/dispatchbot/core/logger"
	"github.com/m3rciful/dispatchbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/dispatchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// handlers binds Telegram updates to the order service.
type handlers struct {
	svc     *order.Service
	texts   texts.Translator
	support string
}

func (h *handlers) t(key string, vars texts.Vars) string { return h.texts.T(key, vars) }

// callback decodes a button press and answers it with the outcome.
func (h *handlers) callback(c tele.Context) error {
	unique, payload := callbacks.ParseCallbackData(c.Callback())
	a, err := action.Decode(unique, payload)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: h.t("common.unsupported_action", nil)})
	}
	ctx := tghelpers.BuildContext(c)
	answer, err := h.svc.HandleAction(ctx, actorOf(c), a)
	if rerr := c.Respond(&tele.CallbackResponse{Text: answer}); rerr != nil {
		logger.Debug(ctx, logger.ComponentOrder, "callback.respond",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(rerr.Error(), 256)),
		)
	}
	return err
}

func (h *handlers) unknownCallback(c tele.Context) error {
	return c.Respond(&tele.CallbackResponse{Text: h.t("common.unsupported_action", nil)})
}

// text handles free text in private chats. Group chatter is ignored.
func (h *handlers) text(c tele.Context) error {
	if !isPrivate(c) {
		return nil
	}
	return h.svc.HandleText(tghelpers.BuildContext(c), actorOf(c), c.Text())
}

func (h *handlers) photo(c tele.Context) error {
	if !isPrivate(c) || c.Message() == nil || c.Message().Photo == nil {
		return nil
	}
	msg := c.Message()
	return h.svc.HandlePhoto(tghelpers.BuildContext(c), actorOf(c), order.Photo{
		FileID:    msg.Photo.FileID,
		UniqueID:  msg.Photo.UniqueID,
		Forwarded: msg.IsForwarded(),
	})
}

// document accepts receipts sent as image files.
func (h *handlers) document(c tele.Context) (bool, error) {
	if !isPrivate(c) || c.Message() == nil {
		return false, nil
	}
	msg := c.Message()
	doc := msg.Document
	if doc == nil || !strings.HasPrefix(strings.ToLower(doc.MIME), "image/") {
		return false, nil
	}
	err := h.svc.HandlePhoto(tghelpers.BuildContext(c), actorOf(c), order.Photo{
		FileID:    doc.FileID,
		UniqueID:  doc.UniqueID,
		Forwarded: msg.IsForwarded(),
	})
	return true, err
}

func (h *handlers) unknownDocument(c tele.Context) error {
	if !isPrivate(c) {
		return nil
	}
	return tghelpers.SendText(c, h.t("customer.no_receipt_expected", texts.Vars{"SUPPORT_PHONE": h.support}))
}

func (h *handlers) start(c tele.Context) error {
	return tghelpers.SendText(c, h.t("common.start", nil))
}

func (h *handlers) help(c tele.Context) error {
	return tghelpers.SendText(c, h.t("common.help", texts.Vars{"SUPPORT_PHONE": h.support}))
}

func (h *handlers) cancel(c tele.Context) error {
	if !isPrivate(c) {
		return nil
	}
	return h.svc.Cancel(tghelpers.BuildContext(c), actorOf(c))
}

func (h *handlers) rateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: h.t("common.rate_limited", nil)})
	}
	return nil
}

func isPrivate(c tele.Context) bool {
	chat := c.Chat()
	return chat != nil && chat.Type == tele.ChatPrivate
}

func actorOf(c tele.Context) order.Actor {
	var a order.Actor
	if u := c.Sender(); u != nil {
		a.ID = u.ID
		a.Name = userName(u)
	}
	if chat := c.Chat(); chat != nil {
		a.ChatID = chat.ID
	}
	return a
}

func userName(u *tele.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}
