package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	ulid "github.com/oklog/ulid/v2"
)

// GenerateUUID returns a 32 character hex identifier
func GenerateUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GenerateUUIDWithPrefix returns a prefixed 32 character hex identifier
// ex inv_0f8fad5bd9cb469fa16570867728950e
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

// GenerateEventID returns a k-sortable identifier used for event messages
// so that log compaction and keyset pagination stay cheap
func GenerateEventID() string {
	return ulid.Make().String()
}

const (
	UUID_PREFIX_ORGANIZATION       = "org"
	UUID_PREFIX_PLAN               = "plan"
	UUID_PREFIX_PLAN_VERSION       = "plan_version"
	UUID_PREFIX_METRIC             = "metric"
	UUID_PREFIX_SUBSCRIPTION_REC   = "sr"
	UUID_PREFIX_SUBSCRIPTION       = "sub"
	UUID_PREFIX_INVOICE            = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM  = "inv_line"
	UUID_PREFIX_BALANCE_ADJUSTMENT = "baladj"
	UUID_PREFIX_USAGE_ALERT        = "usg_alert"
	UUID_PREFIX_WEBHOOK_ENDPOINT   = "whend"
	UUID_PREFIX_WEBHOOK_SECRET     = "whsec"
	UUID_PREFIX_FEATURE            = "feat"
	UUID_PREFIX_RECURRING_CHARGE   = "rc"
	UUID_PREFIX_COMPONENT          = "cmp"
)
