package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Tenant records a tenant slug under the key "tenant".
func Tenant(slug string) slog.Attr {
	return slog.String("tenant", slug)
}

// Database records a database name under the key "database".
func Database(name string) slog.Attr {
	return slog.String("database", name)
}
