package core

// Logger logs messages along with optional context.
// args may contain errors, map[string]interface{} fields and the current user's identity.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
