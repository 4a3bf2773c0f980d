package tui

import "github.com/agalue/shifter/internal/playback"

// Dispatch applies one decoded key event to ctrl and the renderer's help
// flag. It returns true when the event requests program exit.
func Dispatch(ev Event, ctrl *playback.Controller, renderer *Renderer) (quit bool) {
	switch ev.Kind {
	case KeyTogglePause:
		ctrl.TogglePause()
	case KeySeekBackward:
		ctrl.SeekBackward()
	case KeySeekForward:
		ctrl.SeekForward()
	case KeyVolumeUp:
		ctrl.VolumeUp()
	case KeyVolumeDown:
		ctrl.VolumeDown()
	case KeySetStep:
		ctrl.SetStep(ev.Digit)
	case KeyJumpToLive:
		ctrl.JumpToLive()
	case KeyToggleHelp:
		if renderer != nil {
			renderer.ToggleHelp()
		}
	case KeyQuit:
		return true
	}
	return false
}
