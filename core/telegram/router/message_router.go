package router

import (
	tg "github.com/m3rciful/dispatchbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// TextOptions control routing of text, photo and document messages.
type TextOptions struct {
	// UnknownText runs when text is neither a public command nor taken by
	// the registry's text fallback.
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	// Photo handles photo messages; photos are ignored when nil.
	Photo tele.HandlerFunc
	// Document runs before UnknownDocument and reports whether it consumed
	// the document.
	Document func(c tele.Context) (bool, error)
}

// TextRoutes builds the OnText, OnPhoto and OnDocument routes.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		if reg != nil {
			// admin commands are reachable only through their command routes
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && !cmd.AdminOnly {
				return handled(c, handlerName("", key), cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return handled(c, "fallback", fb)
			}
		}
		return handled(c, "unknown_text", opts.UnknownText)
	}

	photo := func(c tele.Context) error {
		return handled(c, "photo", opts.Photo)
	}

	document := func(c tele.Context) error {
		if opts.Document != nil {
			consumed := false
			err := handled(c, "document", func(c tele.Context) (err error) {
				consumed, err = opts.Document(c)
				return err
			})
			if consumed || err != nil {
				return err
			}
		}
		return handled(c, "unexpected_document", opts.UnknownDocument)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnPhoto, Handler: wrap(photo)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}
