package middleware

// identity.go holds the request identity helpers shared by the rate
// limiter, the request log and the scan handlers.

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// HeaderDeviceID names the scanning device.  Door apps send a stable
// value per device; the scan cooldown and the rate limit are keyed on it.
const HeaderDeviceID = "X-Device-ID"

const maxDeviceIDLen = 64

// DeviceID returns the caller's device id, falling back to the client
// IP when the header is missing.
func DeviceID(c echo.Context) string {
	id := strings.TrimSpace(c.Request().Header.Get(HeaderDeviceID))
	if id == "" {
		ip := c.RealIP()
		if ip == "" {
			ip = "unknown"
		}
		return "ip-" + ip
	}
	if len(id) > maxDeviceIDLen {
		id = id[:maxDeviceIDLen]
	}
	return id
}

// staffKey identifies the authenticated caller for rate limit keys.
func staffKey(c echo.Context) string {
	if id, ok := StaffID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
