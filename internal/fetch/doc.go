// Package fetch obtains raw bytes for pages and images from HTTP(S) URLs
// or local file paths. All network failures are reported as *Error so the
// scan adapters can treat them uniformly as skippable.
package fetch
