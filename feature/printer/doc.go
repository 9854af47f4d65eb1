// Package printer reads backup sources from a Duet controller over its rr_
// HTTP API and shows messages on the printer display.
//
// The controller requires a session: rr_connect exchanges the password for a
// session key that is sent as X-Session-Key on every later request. A 401
// means the session expired; the client reconnects once and replays the
// request. 403, 502 and 503 on connect are reported as source.ErrAuth.
//
// Directory trees are walked with an explicit queue. Each directory listing
// may be paged (rr_filelist first/next). A root that does not exist (err 1 or
// 2) is reported for that root only.
//
// Paths on the SD card are exposed as "sd/..." and translated to the
// controller's "0:/..." form on the wire.
package printer
