// Package schedule decides when reconciliation passes run.
//
// The Scheduler waits until the last backup plus the configured interval,
// runs a pass and repeats. An interval of zero runs a single pass and
// returns. When the source was empty the next attempt comes after a shorter
// retry delay (a quarter of the interval unless configured).
//
// Passes started by the loop and by Trigger (the HTTP endpoint) share one
// singleflight group, so concurrent requests collapse into the pass already
// running.
package schedule
