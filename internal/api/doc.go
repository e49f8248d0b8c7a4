// Package api exposes the conversion executor over HTTP.
//
// Routes live under /v1: async submit, status lookup, file download, job
// listing, and a health report. Every error response uses the same JSON body
// so clients can branch on the key field.
package api
