// Command convify runs the conversion daemon and talks to it over HTTP.
//
// "convify serve" starts the daemon in the foreground. The remaining
// subcommands (submit, status, jobs, download) are thin clients of the
// daemon's /v1 API, while sweep, deps, and config operate locally.
package main
