package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/osintlab/imagehound/internal/detect"
	"github.com/osintlab/imagehound/internal/imghash"
	"github.com/osintlab/imagehound/internal/imgmeta"
)

// ExportFunc persists a session's matches and returns where they went
// (a file path, typically).
type ExportFunc func(records []detect.MatchRecord) (string, error)

// Result summarizes one channel scan or monitoring session.
type Result struct {
	// Channel is the scanned channel.
	Channel Channel

	// ItemsScanned counts items that were fingerprinted and evaluated.
	ItemsScanned int

	// Failed counts items whose bytes could not be decoded as an image.
	Failed int

	// Matches holds the session's accepted detections.
	Matches []detect.MatchRecord

	// ExportPath is where the session export was written, or empty when
	// nothing was exported.
	ExportPath string
}

// Monitor drives a Source through the match engine.
type Monitor struct {
	source Source
	engine *detect.Engine
	log    *detect.Log
	logger *slog.Logger
	export ExportFunc
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = logger }
}

// WithExporter sets the session export hook used by Watch.
func WithExporter(export ExportFunc) MonitorOption {
	return func(m *Monitor) { m.export = export }
}

// NewMonitor creates a Monitor reading from source and evaluating through
// engine. The log must be the same one the engine appends to; the monitor
// uses it to delimit sessions.
func NewMonitor(source Source, engine *detect.Engine, log *detect.Log, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		source: source,
		engine: engine,
		log:    log,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Channels lists the source's channels.
func (m *Monitor) Channels(ctx context.Context) ([]Channel, error) {
	return m.source.Channels(ctx)
}

// ResolveChannel lists the source's channels and resolves the query
// against them.
func (m *Monitor) ResolveChannel(ctx context.Context, query string) (Channel, error) {
	channels, err := m.source.Channels(ctx)
	if err != nil {
		return Channel{}, fmt.Errorf("failed to list channels: %w", err)
	}
	return Resolve(channels, query)
}

// ScanRecent evaluates up to limit recent items from the channel.
func (m *Monitor) ScanRecent(ctx context.Context, ch Channel, limit, threshold int) (*Result, error) {
	items, err := m.source.History(ctx, ch, limit)
	if err != nil {
		return nil, err
	}

	result := &Result{Channel: ch, Matches: make([]detect.MatchRecord, 0)}
	m.logger.Info("scanning channel history", "channel", ch.Name, "items", len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		matches, ok := m.evaluateItem(item, threshold)
		if !ok {
			result.Failed++
			continue
		}
		result.ItemsScanned++
		result.Matches = append(result.Matches, matches...)
	}
	return result, nil
}

// Watch subscribes to the channel and evaluates items as they arrive,
// blocking until the context is canceled. On shutdown the session's
// matches are flushed through the export hook; an interrupted session
// must never lose what it already found. Cancellation is a normal stop,
// not an error.
func (m *Monitor) Watch(ctx context.Context, ch Channel, threshold int) (*Result, error) {
	items, err := m.source.Subscribe(ctx, ch)
	if err != nil {
		return nil, err
	}

	mark := m.log.Len()
	result := &Result{Channel: ch}
	m.logger.Info("monitoring channel", "channel", ch.Name, "threshold", threshold)

	for {
		select {
		case <-ctx.Done():
			return m.finishSession(result, mark)
		case item, ok := <-items:
			if !ok {
				return m.finishSession(result, mark)
			}
			if _, evaluated := m.evaluateItem(item, threshold); evaluated {
				result.ItemsScanned++
			} else {
				result.Failed++
			}
		}
	}
}

// finishSession collects the session's matches from the log and flushes
// them through the export hook.
func (m *Monitor) finishSession(result *Result, mark int) (*Result, error) {
	result.Matches = m.log.Since(mark)
	if len(result.Matches) == 0 || m.export == nil {
		return result, nil
	}

	path, err := m.export(result.Matches)
	if err != nil {
		return result, fmt.Errorf("failed to export session matches: %w", err)
	}
	result.ExportPath = path
	m.logger.Info("session matches exported", "path", path, "matches", len(result.Matches))
	return result, nil
}

// evaluateItem fingerprints one item and runs it through the engine. The
// boolean reports whether the bytes decoded as an image.
func (m *Monitor) evaluateItem(item Item, threshold int) ([]detect.MatchRecord, bool) {
	fp, err := imghash.Compute(item.Data)
	if err != nil {
		m.logger.Warn("skipping item", "channel", item.Channel, "message", item.MessageID, "error", err)
		return nil, false
	}

	return m.engine.Evaluate(detect.Candidate{
		Fingerprint: fp,
		Locator:     item.Locator(),
		Provenance:  "stream - " + item.Channel,
		Meta:        imgmeta.Extract(item.Data),
	}, threshold), true
}
