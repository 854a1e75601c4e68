package text

import "errors"

// ErrQuit is returned by Pump when the player asks to leave.
var ErrQuit = errors.New("player quit")
