// Package constants holds shared limits and defaults for osparc-tables.
package constants

import (
	"time"
)

// Paging limits
const (
	// ServerMaxLimit - largest page the osparc webserver accepts for list endpoints.
	// Clients must split larger windows themselves; the server does not truncate gracefully.
	ServerMaxLimit = 49

	// CountProbeLimit - page size used by the row-count probe request
	CountProbeLimit = 1

	// DefaultPageConcurrency - chunk requests in flight for one logical range (0 = unbounded)
	DefaultPageConcurrency = 4

	// MaxPageConcurrency - upper bound accepted from config
	MaxPageConcurrency = 32

	// DefaultCacheRows - rows kept in a table model's window before eviction
	DefaultCacheRows = 1000

	// MinCacheRows - smallest accepted window size (must fit at least one full page)
	MinCacheRows = ServerMaxLimit
)

// Event Bus Configuration
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum allowed buffer size
	EventBusMaxBuffer = 5000
)

// Activity log
const (
	// ActivityLogInitialCapacity - initial capacity for log entries slice
	ActivityLogInitialCapacity = 100

	// ActivityLogMaxEntries - entries kept before the oldest are dropped
	ActivityLogMaxEntries = 10000
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// DefaultRequestTimeout - overall timeout for a single list request
	DefaultRequestTimeout = 60 * time.Second
)

// API rate limiting (osparc webserver throttles per user session)
const (
	// APIRatePerSec - sustained request rate toward the webserver
	APIRatePerSec = 10.0

	// APIBurstCapacity - requests allowed in a burst (covers a full window of chunk requests)
	APIBurstCapacity = 40.0
)

// Display defaults
const (
	// DefaultDateLayout - layout used for date columns
	DefaultDateLayout = "2006-01-02 15:04"

	// DefaultPlatformURL - osparc production deployment
	DefaultPlatformURL = "https://osparc.io"
)
