package core

// Notifier receives user-facing error strings. Presentation is up to the caller.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(message string) {
	if f != nil {
		f(message)
	}
}

// Discard is a Notifier that drops every message.
var Discard Notifier = NotifierFunc(nil)
