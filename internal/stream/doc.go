// Package stream adapts message-channel sources (chat exports, spool
// directories) to the match engine. A Source lists channels, replays
// recent items, and can subscribe to new ones; the Monitor drives a
// source through fingerprinting and matching.
package stream
