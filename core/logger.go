package core

// Logger is any service that can log messages.
// args may contain errors, maps of extra data and the user performing the request.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Metrics receives domain counters.
type Metrics interface {
	NotificationsCreated(typ string, n int)
	ScoresSubmitted(kind string, n int)
}

type nopMetrics struct{}

func (nopMetrics) NotificationsCreated(string, int) {}
func (nopMetrics) ScoresSubmitted(string, int)      {}

// NopMetrics discards every counter.
var NopMetrics Metrics = nopMetrics{}
