package errors

import "fmt"

var (
	ErrAuthentication     = fmt.Errorf("authentication failed")
	ErrMembershipLookup   = fmt.Errorf("membership lookup failed")
	ErrUnknownConnection  = fmt.Errorf("unknown connection")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrUnknownEvent       = fmt.Errorf("unknown event")
	ErrDeliveryTimeout    = fmt.Errorf("delivery timeout")
	ErrSinkClosed         = fmt.Errorf("sink closed")
	ErrReconnectExhausted = fmt.Errorf("maximum reconnection attempts reached")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrPresenceStore      = fmt.Errorf("presence store failed")
)
