package surface

import "errors"

// ErrNoSurface is returned by the disconnected client for every interaction.
var ErrNoSurface = errors.New("no surface: game adapter not attached")

type disconnected struct{}

// Disconnected returns a Client for running without a game adapter attached.
// It exposes no surface and fails every interaction, which lets the daemon
// run end to end (queues, pause windows, sweeps) with operations reporting
// failure instead of panicking.
func Disconnected() Client {
	return disconnected{}
}

func (disconnected) Current() (Surface, bool)        { return Surface{}, false }
func (disconnected) Select(int) error                { return ErrNoSurface }
func (disconnected) Subscribe(func(Event)) func()    { return func() {} }
func (disconnected) OnDialog(func(string)) func()    { return func() {} }
func (disconnected) SubmitText(string, string) error { return ErrNoSurface }
func (disconnected) Close() error                    { return nil }
