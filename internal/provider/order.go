package provider

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edvin/billing/internal/platform"
)

// ErrInvalidOrderNSU is returned when a correlation id does not have the
// org_<uuid>_<unix> shape or embeds an invalid organization id.
var ErrInvalidOrderNSU = errors.New("invalid order_nsu")

const orderPrefix = "org_"

// BuildOrderNSU returns the correlation id sent to providers for a checkout.
func BuildOrderNSU(orgID string, now time.Time) string {
	return fmt.Sprintf("%s%s_%d", orderPrefix, orgID, now.Unix())
}

// ParseOrderNSU extracts the organization id from a correlation id. The id
// must be a canonical UUID.
func ParseOrderNSU(orderNSU string) (string, time.Time, error) {
	rest, ok := strings.CutPrefix(orderNSU, orderPrefix)
	if !ok {
		return "", time.Time{}, ErrInvalidOrderNSU
	}
	i := strings.LastIndexByte(rest, '_')
	if i < 0 {
		return "", time.Time{}, ErrInvalidOrderNSU
	}
	orgID, ts := rest[:i], rest[i+1:]
	if !platform.IsID(orgID) {
		return "", time.Time{}, ErrInvalidOrderNSU
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || unix <= 0 {
		return "", time.Time{}, ErrInvalidOrderNSU
	}
	return orgID, time.Unix(unix, 0).UTC(), nil
}
