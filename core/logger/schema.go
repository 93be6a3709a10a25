package logger

import "strings"

// Components shared by the framework.
const (
	ComponentApp     = "app"
	ComponentDB      = "db"
	ComponentMigrate = "db.migrate"
	ComponentSeed    = "db.seed"
	ComponentTG      = "tg"
	ComponentWire    = "tg.wire"
	ComponentSender  = "tg.sender"
)

// Components used by the dispatch domain.
const (
	ComponentOrder     = "order"
	ComponentDispatch  = "dispatch"
	ComponentSession   = "session"
	ComponentMilestone = "milestone"
	ComponentReceipt   = "receipt"
	ComponentRecord    = "record"
	ComponentCLI       = "cli"
)

// enumField restricts a string field to a closed vocabulary. Unknown values
// are dropped unless keep is set.
type enumField struct {
	key    string
	values map[string]struct{}
	keep   bool
}

func enum(key string, keep bool, values ...string) enumField {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return enumField{key: key, values: set, keep: keep}
}

var enumFields = []enumField{
	enum("status", true, "ok", "fail", "skip", "retry", "rate_limited", "cancelled", "expired"),
	enum("outcome", false, "ok", "fail", "cancelled", "rate_limited", "rejected"),
	enum("phase", true, "intake", "payment_confirmed", "driver_accepted", "picked", "delivered"),
}

func (e enumField) apply(fields map[string]any) {
	raw, ok := stringField(fields, e.key)
	if !ok || raw == "" {
		return
	}
	v := strings.ToLower(strings.TrimSpace(raw))
	if _, known := e.values[v]; known || e.keep {
		fields[e.key] = v
		return
	}
	delete(fields, e.key)
}

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "", "info":
		return "INFO"
	case "warning":
		return "WARN"
	}
	return strings.ToUpper(level)
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ref",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"operation",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"answered",
	"count",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"status_from",
	"status_to",
	"actor_id",
	"driver_id",
	"customer_id",
	"phase",
	"sent",
	"failed",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
	"collapsed",
	"repeats",
	"pending_count",
}
