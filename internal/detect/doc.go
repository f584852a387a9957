// Package detect implements the fingerprint match engine and the
// process-scoped detection log. Every ingestion path (web page scan,
// message stream scan, single-image check) funnels candidates through
// Engine.Evaluate and collects accepted matches in a Log.
package detect
