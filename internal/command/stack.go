// Package command implements the per-document transactional command stack:
// a linear undo/redo history of invertible mutations.
package command

import (
	"fmt"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/document"
)

// Applier applies one mutation and returns its inverse plus whether the
// mutation changed document shape. Replay reapplies a history op without the
// user-input policy checks; undo, redo and rollback go through it, since the
// ops they carry were validated when the command committed and re-checking
// them against refreshed provenance can reject a legal revert.
// *document.Model satisfies this.
type Applier interface {
	Apply(document.Op) (inverse document.Op, shapeChanged bool, err error)
	Replay(document.Op) error
}

// State of the stack with respect to command assembly.
type State int

const (
	// Idle: no pending command.
	Idle State = iota
	// Recording: one command is being assembled; entered on the first edit
	// gesture, exited on commit or cancel.
	Recording
)

// Command is one committed history entry. Forward ops are stored in apply
// order, inverse ops in undo order (reverse). Commands are owned exclusively
// by the stack; the document model never retains history.
type Command struct {
	Forward      []document.Op
	Inverse      []document.Op
	ShapeChanged bool
}

// Stack maintains a single linear history per open document.
//
// At most one command records at a time, enforced by the Idle/Recording state
// rather than locking: the engine assumes a single-writer cooperative caller.
type Stack struct {
	applier Applier
	history []*Command
	cursor  int // number of commands currently applied
	pending []document.Op
	state   State
}

// NewStack creates an empty stack driving the given applier.
func NewStack(applier Applier) *Stack {
	return &Stack{applier: applier}
}

// State returns Idle or Recording.
func (s *Stack) State() State { return s.state }

// Begin starts assembling a command. Fails if one is already recording.
func (s *Stack) Begin() error {
	if s.state == Recording {
		return fmt.Errorf("command: begin: %w", apperr.ErrRecording)
	}
	s.state = Recording
	s.pending = nil
	return nil
}

// Push adds one mutation to the recording command. Nothing is applied yet.
func (s *Stack) Push(op document.Op) error {
	if s.state != Recording {
		return fmt.Errorf("command: push: %w", apperr.ErrNotRecording)
	}
	s.pending = append(s.pending, op)
	return nil
}

// Cancel discards the recording command without applying anything.
func (s *Stack) Cancel() error {
	if s.state != Recording {
		return fmt.Errorf("command: cancel: %w", apperr.ErrNotRecording)
	}
	s.state = Idle
	s.pending = nil
	return nil
}

// Commit applies the recorded mutations exactly once, appends the finished
// command to history and truncates any redo tail.
//
// If an op is rejected mid-commit, the already-applied ops are rolled back in
// reverse order: a rejected mutation never leaves the document in an
// intermediate state, and nothing is appended.
func (s *Stack) Commit() (*Command, error) {
	if s.state != Recording {
		return nil, fmt.Errorf("command: commit: %w", apperr.ErrNotRecording)
	}
	s.state = Idle
	ops := s.pending
	s.pending = nil
	if len(ops) == 0 {
		return nil, nil
	}

	cmd := &Command{Forward: ops}
	for i, op := range ops {
		inv, shape, err := s.applier.Apply(op)
		if err != nil {
			// Roll back what already applied, newest first.
			for j := i - 1; j >= 0; j-- {
				if rbErr := s.applier.Replay(cmd.Inverse[len(cmd.Inverse)-1-j]); rbErr != nil {
					return nil, fmt.Errorf("command: rollback failed after rejected op: %v (original: %w)", rbErr, err)
				}
			}
			return nil, err
		}
		// Prepend so inverses run newest-first on undo.
		cmd.Inverse = append([]document.Op{inv}, cmd.Inverse...)
		cmd.ShapeChanged = cmd.ShapeChanged || shape
	}

	s.history = append(s.history[:s.cursor], cmd)
	s.cursor = len(s.history)
	return cmd, nil
}

// Undo applies the inverse of the command at the history cursor. At the
// bottom of history it is a no-op, never an error: over-undoing must not
// crash or corrupt anything.
func (s *Stack) Undo() (*Command, bool, error) {
	if s.state == Recording {
		return nil, false, fmt.Errorf("command: undo: %w", apperr.ErrRecording)
	}
	if s.cursor == 0 {
		return nil, false, nil
	}
	cmd := s.history[s.cursor-1]
	for _, op := range cmd.Inverse {
		if err := s.applier.Replay(op); err != nil {
			return nil, false, fmt.Errorf("command: undo apply: %w", err)
		}
	}
	s.cursor--
	return cmd, true, nil
}

// Redo re-applies the forward mutations of the command after the cursor.
// A no-op at the top of history.
func (s *Stack) Redo() (*Command, bool, error) {
	if s.state == Recording {
		return nil, false, fmt.Errorf("command: redo: %w", apperr.ErrRecording)
	}
	if s.cursor >= len(s.history) {
		return nil, false, nil
	}
	cmd := s.history[s.cursor]
	for _, op := range cmd.Forward {
		if err := s.applier.Replay(op); err != nil {
			return nil, false, fmt.Errorf("command: redo apply: %w", err)
		}
	}
	s.cursor++
	return cmd, true, nil
}

// CanUndo reports whether history has an applied command to revert.
func (s *Stack) CanUndo() bool { return s.cursor > 0 }

// CanRedo reports whether a redo tail exists.
func (s *Stack) CanRedo() bool { return s.cursor < len(s.history) }

// Len returns the number of commands in history (applied or not).
func (s *Stack) Len() int { return len(s.history) }
