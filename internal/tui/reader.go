// Package tui implements the interactive terminal front end (spec
// component H): raw single-keypress reading grounded on
// doismellburning-samoyed's github.com/pkg/term usage for serial line
// discipline (same termios control surface) and the save/restore-on-exit
// pattern in
// joeycumines-go-utilpkg/prompt/term/term.go, plus lipgloss-styled
// rendering of the status line, peak meters, and help overlay.
package tui

import (
	"fmt"

	"github.com/pkg/term"
)

// Reader puts the controlling terminal into raw mode and decodes single
// keypresses and common arrow-key escape sequences. Call Close exactly
// once, from every exit path including panics, to restore the terminal.
type Reader struct {
	t *term.Term
}

// NewReader opens /dev/tty in raw mode.
func NewReader() (*Reader, error) {
	t, err := term.Open("/dev/tty", term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open controlling terminal for raw input: %w", err)
	}
	return &Reader{t: t}, nil
}

// Close restores the terminal's original mode. Safe to call more than
// once.
func (r *Reader) Close() error {
	if r.t == nil {
		return nil
	}
	restoreErr := r.t.Restore()
	closeErr := r.t.Close()
	r.t = nil
	if restoreErr != nil {
		return fmt.Errorf("restore terminal mode: %w", restoreErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close terminal: %w", closeErr)
	}
	return nil
}

// Next blocks for the next decoded key event.
func (r *Reader) Next() (Event, error) {
	var b [1]byte
	for {
		n, err := r.t.Read(b[:])
		if err != nil {
			return Event{}, err
		}
		if n == 0 {
			continue
		}

		switch b[0] {
		case ' ':
			return Event{Kind: KeyTogglePause}, nil
		case 'q', 'Q':
			return Event{Kind: KeyQuit}, nil
		case 'l', 'L':
			return Event{Kind: KeyJumpToLive}, nil
		case 'h', 'H', '?':
			return Event{Kind: KeyToggleHelp}, nil
		case 0x1b:
			ev, ok, err := r.readEscapeSequence()
			if err != nil {
				return Event{}, err
			}
			if ok {
				return ev, nil
			}
			// Bare ESC with no recognized follow-up: ignore and keep
			// reading.
			continue
		default:
			if b[0] >= '1' && b[0] <= '9' {
				return Event{Kind: KeySetStep, Digit: int(b[0] - '1')}, nil
			}
		}
	}
}

// readEscapeSequence decodes the two bytes following an ESC for the arrow
// keys this program cares about (CSI A/B/C/D). Returns ok=false for any
// other or incomplete sequence.
func (r *Reader) readEscapeSequence() (Event, bool, error) {
	var seq [2]byte
	if _, err := r.t.Read(seq[:1]); err != nil {
		return Event{}, false, err
	}
	if seq[0] != '[' {
		return Event{}, false, nil
	}
	if _, err := r.t.Read(seq[1:2]); err != nil {
		return Event{}, false, err
	}
	switch seq[1] {
	case 'A':
		return Event{Kind: KeyVolumeUp}, true, nil
	case 'B':
		return Event{Kind: KeyVolumeDown}, true, nil
	case 'C':
		return Event{Kind: KeySeekBackward}, true, nil
	case 'D':
		return Event{Kind: KeySeekForward}, true, nil
	default:
		return Event{}, false, nil
	}
}
