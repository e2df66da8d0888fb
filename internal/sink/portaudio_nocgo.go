//go:build !cgo

package sink

import "errors"

// NewPortaudioPlayer is unavailable without cgo.
func NewPortaudioPlayer(int) (Player, error) {
	return nil, errors.New("portaudio playback requires a cgo build")
}
