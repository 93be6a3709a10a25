package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// RefStyle selects the order reference format.
type RefStyle string

const (
	// RefRich renders GG-YYYYMMDD-HHMMSS-XXXX.
	RefRich RefStyle = "rich"
	// RefShort renders GG_XXXX.
	RefShort RefStyle = "short"
)

const (
	refPrefix    = "GG"
	suffixLen    = 4
	suffixRunes  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxRefTries  = 64
	richRefStamp = "20060102-150405"
)

// ParseRefStyle maps a config value to a style, defaulting to rich.
func ParseRefStyle(s string) RefStyle {
	if strings.EqualFold(strings.TrimSpace(s), string(RefShort)) {
		return RefShort
	}
	return RefRich
}

// FormatRef renders a reference for now and suffix.
func FormatRef(style RefStyle, now time.Time, suffix string) string {
	if style == RefShort {
		return refPrefix + "_" + suffix
	}
	return fmt.Sprintf("%s-%s-%s", refPrefix, now.Format(richRefStamp), suffix)
}

// RandomSuffix returns four random base36 characters.
func RandomSuffix() string {
	var b strings.Builder
	b.Grow(suffixLen)
	limit := big.NewInt(int64(len(suffixRunes)))
	for range suffixLen {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(suffixRunes[n.Int64()])
	}
	return b.String()
}
