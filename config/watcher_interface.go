package config

// Watcher is what the server needs from a source of live configuration:
// the current value and a stream of validated replacements.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}

// StaticWatcher serves a fixed configuration and never publishes updates.
type StaticWatcher struct {
	config *Config
	ch     chan *Config
}

// NewStaticWatcher returns a Watcher for a configuration that never changes.
func NewStaticWatcher(cfg *Config) *StaticWatcher {
	return &StaticWatcher{config: cfg, ch: make(chan *Config)}
}

// GetCurrentConfig implements Watcher.
func (w *StaticWatcher) GetCurrentConfig() *Config { return w.config }

// Subscribe implements Watcher. The channel never delivers.
func (w *StaticWatcher) Subscribe() <-chan *Config { return w.ch }

// Close implements Watcher.
func (w *StaticWatcher) Close() error { return nil }
