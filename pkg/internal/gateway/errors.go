package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when a write is attempted without a
// connected wallet session.
var ErrUnauthenticated = errors.New("no wallet session connected")

// Error is a classified remote-call failure. Short carries the wallet or
// node provided short message ("user rejected", "execution reverted") when
// one exists; Message is the raw error text.
type Error struct {
	Op      Op     `json:"op"`
	Short   string `json:"short"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("contract call %s failed: %s", e.Op, e.Message)
}

// ShortMessage returns the short form when present, else the raw message.
func (e *Error) ShortMessage() string {
	if len(e.Short) > 0 {
		return e.Short
	}
	return e.Message
}

// ShortMessage extracts the user-facing form of any error coming out of the
// gateway.
func ShortMessage(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.ShortMessage()
	}
	return err.Error()
}
