// Package webscan discovers candidate images on web pages and runs them
// through the match engine. A page scan is best-effort: one unreachable or
// undecodable image never aborts the rest of the page.
package webscan
