package metrics

// NoopCollector is a no-op implementation of the Collector interface.
type NoopCollector struct{}

// ConnectionOpened is a no-op.
func (n *NoopCollector) ConnectionOpened() {}

// ConnectionClosed is a no-op.
func (n *NoopCollector) ConnectionClosed() {}

// ConnectionTimedOut is a no-op.
func (n *NoopCollector) ConnectionTimedOut() {}

// AuthAttempt is a no-op.
func (n *NoopCollector) AuthAttempt(success bool) {}

// CommandProcessed is a no-op.
func (n *NoopCollector) CommandProcessed(command string) {}

// ArticleServed is a no-op.
func (n *NoopCollector) ArticleServed(sizeBytes int64) {}

// ArticlePosted is a no-op.
func (n *NoopCollector) ArticlePosted(group string, success bool) {}
