package ratelimit

import "time"

// osparc's public API throttles per API key. We stay under the documented
// budget so that a burst of page requests from one table reload never
// trips the server-side limiter.
const (
	// APIRatePerSec is the sustained request rate per API key.
	APIRatePerSec = 10.0

	// APIBurstCapacity lets one reload of a large window (count probe plus
	// parallel 49-row chunks) go out without waiting.
	APIBurstCapacity = 40.0
)

// Wait logging thresholds.
const (
	// WarnWaitThreshold is the expected wait above which a warning is logged.
	WarnWaitThreshold = 2 * time.Second

	// WarnMinInterval is the minimum time between consecutive wait warnings.
	WarnMinInterval = 10 * time.Second

	// DefaultCooldown applies after a 429 without a Retry-After header.
	DefaultCooldown = 5 * time.Second
)
