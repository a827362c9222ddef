package metrics

// Server exposes the collectors to a scraper over HTTP. Close is safe
// to call before Start and more than once.
type Server interface {
	Start() error
	Close() error
}
