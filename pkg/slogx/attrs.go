package slogx

import "log/slog"

// Error returns a slog.Attr for the provided error under the key "error".
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// User returns a slog.Attr for a user key under the key "user". Every log
// line emitted on behalf of a connected user carries this attribute so the
// per-user traffic of a shared mock instance can be told apart.
func User(userKey string) slog.Attr {
	return slog.String("user", userKey)
}

// Method returns a slog.Attr for a Firebolt method name under the key
// "method".
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Conn returns a slog.Attr for a connection id under the key "conn".
func Conn(id string) slog.Attr {
	return slog.String("conn", id)
}
