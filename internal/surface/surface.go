// Package surface models the single interactive surface the game client
// exposes and the lookup policy used to find elements on it. The core never
// owns the surface; it observes contents and selects slot indices.
package surface

// Slot is one indexed interactive element on a surface.
type Slot struct {
	Index       int
	DisplayText string
}

// Surface is a snapshot of the shared interactive resource.
type Surface struct {
	Title string
	Slots []Slot
}

// EventKind classifies surface notifications delivered by the game client.
type EventKind int

const (
	EventOpened EventKind = iota
	EventUpdated
	EventClosed
)

// Event is a surface notification.
type Event struct {
	Kind    EventKind
	Surface Surface
}

// Client is the contract the game client exposes to the core. Listener
// registration returns a cancel func; callers must register before issuing
// the selection that may produce the event.
type Client interface {
	// Current returns the surface presently open, if any.
	Current() (Surface, bool)
	// Select clicks the slot at index on the current surface.
	Select(index int) error
	// Subscribe registers a listener for surface opened/updated/closed events.
	Subscribe(fn func(Event)) (cancel func())
	// OnDialog registers a listener for the side text-entry dialog. The
	// callback receives the dialog's location token.
	OnDialog(fn func(token string)) (cancel func())
	// SubmitText completes the text-entry dialog identified by token.
	SubmitText(token, text string) error
	// Close dismisses the current surface, releasing the shared resource.
	Close() error
}
