// Package transport wraps request/response exchanges with a bounded retry
// policy and a typed classification of their outcome.
//
// Every network boundary of the backup (hosting API, printer, object store)
// goes through this package so that all of them share the same behavior:
//
//   - At most Policy.MaxAttempts attempts (default 2), separated by a fixed
//     Policy.Delay (default 1s), each bounded by Policy.Timeout (default 5s).
//   - Connection failures and timeouts are transient and retried.
//   - A response with an accepted status (default 200 and 204) is OutcomeOK.
//   - A response signalling an expired session (default 401) is returned
//     immediately as OutcomeReauthenticate. The transport never logs in by
//     itself; Session performs exactly one reauthentication and replays the
//     call.
//   - Any other status is OutcomeFailed and is not retried.
//
// Do never returns an error value. When all attempts fail it returns a
// synthetic Result carrying the last observed status and reason, so callers
// decide whether the failure is fatal for the pass or local to one file.
//
// # Usage
//
//	client := transport.NewClient(nil, transport.DefaultPolicy(), logger)
//	res := client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
//	    return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
//	})
//	if !res.OK() {
//	    return res.Err()
//	}
package transport
