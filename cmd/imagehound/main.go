// Package main provides the entry point for the imagehound CLI.
//
// Imagehound tracks reuse of known images across web pages and message
// channels by comparing perceptual hashes against a curated target
// database.
//
// Usage:
//
//	imagehound target add <image-url-or-path>
//	imagehound scan <page-url>
//	imagehound stream monitor <channel>
//
// See --help for all available options.
package main

// main is the entry point for imagehound.
func main() {
	Execute()
}
