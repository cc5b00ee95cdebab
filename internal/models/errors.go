package models

import "errors"

// Rejection taxonomy shared by the market engine, message bus, event log and
// portfolio ledger. Every rejection is local to the offending call: no event is
// appended and no state is mutated when one of these is returned.
var (
	// ErrMalformedEvent means a structurally invalid event was submitted to the log.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrInvalidOrder means the stock is unknown or the quantity is not positive.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInsufficientFunds means the agent's cash cannot cover a buy order.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings means the agent's position cannot cover a sell order.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrUnknownAgent means an action referenced an agent id that was never
	// registered with the simulation.
	ErrUnknownAgent = errors.New("unknown agent")
)
