package engine

import (
	"go.lsp.dev/uri"
)

// EventType represents the type of engine event
type EventType int

const (
	// EventChanged follows a successful re-parse or a removal.
	EventChanged EventType = iota
	// EventRebuilt follows a cache-wide rebuild.
	EventRebuilt
	// EventLoaded follows the completion of a workspace load.
	EventLoaded
	// EventFocus follows an active document change.
	EventFocus
)

// String returns the string representation of the EventType
func (t EventType) String() string {
	switch t {
	case EventChanged:
		return "changed"
	case EventRebuilt:
		return "rebuilt"
	case EventLoaded:
		return "loaded"
	case EventFocus:
		return "focus"
	default:
		return "unknown"
	}
}

// Event tells subscribers that views need refreshing. URI is empty for
// cache-wide events.
type Event struct {
	Type EventType
	URI  uri.URI
}

// Subscribe returns a channel that receives engine events
func (e *Engine) Subscribe() <-chan Event {
	e.subsMutex.Lock()
	defer e.subsMutex.Unlock()

	ch := make(chan Event, 100)
	e.subscribers = append(e.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes it
func (e *Engine) Unsubscribe(ch <-chan Event) {
	e.subsMutex.Lock()
	defer e.subsMutex.Unlock()

	for i, sub := range e.subscribers {
		if sub == ch {
			close(sub)
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			break
		}
	}
}

func (e *Engine) notify(event Event) {
	e.subsMutex.Lock()
	defer e.subsMutex.Unlock()

	for _, sub := range e.subscribers {
		select {
		case sub <- event:
		default:
			// Skip if channel is full
		}
	}
}
