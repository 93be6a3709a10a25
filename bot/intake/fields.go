package intake

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder is shown for display fields missing from the summary.
const Placeholder = "—"

// Currency prefixes formatted amounts.
const Currency = "ETB"

var (
	// amounts count only with a currency token on either side of the number
	moneyRe         = regexp.MustCompile(`(?i)(?:ETB|Birr|Br)\.?\s*(\d[\d,]*(?:\.\d+)?)|(\d[\d,]*(?:\.\d+)?)\s*(?:ETB|Birr|Br)\b`)
	totalLabelRe    = regexp.MustCompile(`(?i)(?:^|[^a-z])total\b`)
	deliveryLabelRe = regexp.MustCompile(`(?i)(?:^|[^a-z])delivery\b`)
	deliveryInfoRe  = regexp.MustCompile(`(?i)delivery\s+(?:address|location|area|time|date|note)`)
	qtyRe      = regexp.MustCompile(`(?i)\b(?:qty|quantity)\s*[:=x×]?\s*(\d+)`)
	addressRe  = regexp.MustCompile(`(?im)address\s*[:\-]?\s*([^\n]+)`)
	mapRe      = regexp.MustCompile(`(?i)https?://(?:maps\.app\.goo\.gl|goo\.gl/maps|(?:www\.)?google\.[a-z.]+/maps|maps\.google\.[a-z.]+)\S*`)
	nameRe     = regexp.MustCompile(`(?im)^[ \t]*(?:👤[ \t]*(?:name[ \t]*[:\-][ \t]*)?|name[ \t]*[:\-][ \t]*)(\S[^\n]*)$`)
	phoneRe    = regexp.MustCompile(`(?i)(?:phone|tel|📞)[^\n\d+]*?(\+?\d[\d \-]{6,}\d)`)
)

// Amount is an optional money value parsed from the summary.
type Amount struct {
	Float64 float64
	Valid   bool
}

// String renders the amount with currency, or the placeholder when absent.
func (a Amount) String() string {
	if !a.Valid {
		return Placeholder
	}
	return Currency + " " + groupThousands(a.Float64)
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
	case float64:
		*a = Amount{Float64: v, Valid: true}
	case int64:
		*a = Amount{Float64: float64(v), Valid: true}
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return fmt.Errorf("intake: scan amount: %w", err)
		}
		*a = Amount{Float64: f, Valid: true}
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("intake: scan amount: %w", err)
		}
		*a = Amount{Float64: f, Valid: true}
	default:
		return fmt.Errorf("intake: cannot scan %T into Amount", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	if !a.Valid {
		return nil, nil
	}
	return a.Float64, nil
}

// Fields are the values extracted from an order summary.
type Fields struct {
	Ref          string
	Total        Amount
	Delivery     Amount
	Qty          int
	Area         string
	MapURL       string
	CustomerName string
	Phone        string
}

// ParseOrderFields extracts order fields on a best-effort basis. Quantities
// from every qty line are summed. Missing display fields hold Placeholder.
func (a *Anchors) ParseOrderFields(text string) Fields {
	f := Fields{
		Area:         Placeholder,
		MapURL:       Placeholder,
		CustomerName: Placeholder,
		Phone:        Placeholder,
	}
	if a.ref != nil {
		f.Ref = a.ref.FindString(text)
	}
	f.Total = labeledAmount(text, totalLabelRe, nil)
	f.Delivery = labeledAmount(text, deliveryLabelRe, deliveryInfoRe)

	for _, m := range qtyRe.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			f.Qty += n
		}
	}

	if m := addressRe.FindStringSubmatch(text); m != nil {
		area := m[1]
		if i := strings.Index(area, ","); i >= 0 {
			area = area[:i]
		}
		if area = strings.TrimSpace(area); area != "" {
			f.Area = area
		}
	}
	if m := mapRe.FindString(text); m != "" {
		f.MapURL = strings.TrimRight(m, ").,;:!?]>\"'")
	}
	if m := nameRe.FindStringSubmatch(text); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			f.CustomerName = name
		}
	}
	if m := phoneRe.FindStringSubmatch(text); m != nil {
		if p := a.NormalizePhone(m[1]); p != "" {
			f.Phone = p
		}
	}
	return f
}

// NormalizePhone strips separators and replaces a leading local 0 with the
// configured country code.
func (a *Anchors) NormalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	p := b.String()
	switch {
	case p == "":
		return ""
	case strings.HasPrefix(p, "+"):
		return p
	case strings.HasPrefix(p, "0"):
		return a.countryCode + p[1:]
	case strings.HasPrefix(p, strings.TrimPrefix(a.countryCode, "+")):
		return "+" + p
	}
	return p
}

// IsEmpty reports whether a display value is missing.
func IsEmpty(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == Placeholder
}

// labeledAmount returns the first currency amount that follows label on the
// same line. Lines matching skip are ignored.
func labeledAmount(text string, label, skip *regexp.Regexp) Amount {
	for line := range strings.Lines(text) {
		if skip != nil && skip.MatchString(line) {
			continue
		}
		at := label.FindStringIndex(line)
		if at == nil {
			continue
		}
		m := moneyRe.FindStringSubmatch(line[at[1]:])
		if m == nil {
			continue
		}
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64); err == nil {
			return Amount{Float64: v, Valid: true}
		}
	}
	return Amount{}
}

func groupThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
