package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error categories. Concrete errors wrap one of these so callers can classify
// them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrCapacity          = errors.New("capacity exceeded")
	ErrConflict          = errors.New("conflict")
	ErrConsistency       = errors.New("inconsistent room state")
	ErrPartialAssignment = errors.New("partial assignment")
)

var (
	ErrRoomNotFound       = fmt.Errorf("room %w", ErrNotFound)
	ErrQuotaNotFound      = fmt.Errorf("room type %w", ErrNotFound)
	ErrMembershipNotFound = fmt.Errorf("room membership %w", ErrNotFound)
	ErrOrderNotFound      = fmt.Errorf("order %w", ErrNotFound)

	ErrRoomFull       = fmt.Errorf("room is full: %w", ErrCapacity)
	ErrQuotaExhausted = fmt.Errorf("no more rooms of this type available: %w", ErrCapacity)

	ErrDuplicateName = fmt.Errorf("name already taken: %w", ErrConflict)
	ErrAlreadyInRoom = fmt.Errorf("order already assigned to a room: %w", ErrConflict)
	ErrLocked        = fmt.Errorf("operation already running: %w", ErrConflict)

	ErrPasswordMismatch = errors.New("room password does not match")
	ErrNotRoomAdmin     = errors.New("only the room administrator may change the room")
	ErrInvalidHolder    = errors.New("membership needs exactly one of cart or order")
	ErrInvalidInput     = errors.New("invalid input")
)

// RoomValidationError blocks confirmation of an order whose recorded room
// choice does not match the room state.
type RoomValidationError struct {
	Reason string
}

func (e *RoomValidationError) Error() string {
	return "room validation error: " + e.Reason
}

func (e *RoomValidationError) Is(target error) bool { return target == ErrConsistency }

func NewRoomValidationError(format string, args ...any) *RoomValidationError {
	return &RoomValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PartialAssignmentError lists the orders the allocator could not place.
type PartialAssignmentError struct {
	Failed []int64
}

func (e *PartialAssignmentError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, id := range e.Failed {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("could not find a room for %d order(s): %s", len(e.Failed), strings.Join(ids, ", "))
}

func (e *PartialAssignmentError) Is(target error) bool { return target == ErrPartialAssignment }
