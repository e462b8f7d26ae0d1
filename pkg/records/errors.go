package records

import (
	"errors"
	"fmt"
)

var ErrSlotOutOfRange = errors.New("slot out of range")

type SlotError struct {
	Slot int
	Len  int
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %d is not within 1..%d", e.Slot, e.Len)
}

func (e *SlotError) Is(target error) bool {
	return target == ErrSlotOutOfRange
}
