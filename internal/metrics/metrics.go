// Package metrics defines the Collector interface the NNTP server reports
// events to, with a Prometheus implementation and a no-op fallback for
// deployments without a metrics endpoint.
package metrics

// Collector records NNTP server events. Implementations must be safe for
// concurrent use.
type Collector interface {
	// Connection metrics
	ConnectionOpened()
	ConnectionClosed()
	ConnectionTimedOut()

	// Authentication metrics
	AuthAttempt(success bool)

	// Command metrics
	CommandProcessed(command string)

	// Article metrics
	ArticleServed(sizeBytes int64)
	ArticlePosted(group string, success bool)
}
