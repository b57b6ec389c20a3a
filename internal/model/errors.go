package model

import "errors"

// Typed failures surfaced by the position ledger. Every operation either
// commits fully or fails with one of these; callers match with errors.Is.
var (
	ErrInvalidTokenID         = errors.New("invalid token id")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrDeadlineExpired        = errors.New("deadline expired")
	ErrSlippageExceeded       = errors.New("slippage exceeded")
	ErrInsufficientLiquidity  = errors.New("insufficient liquidity")
	ErrPositionNotEmpty       = errors.New("position not empty")
	ErrInvalidTickRange       = errors.New("invalid tick range")
	ErrInvalidPoolState       = errors.New("invalid pool state")
	ErrPermitExpired          = errors.New("permit expired")
	ErrPermitInvalidSignature = errors.New("permit invalid signature")
	ErrPermitNonceMismatch    = errors.New("permit nonce mismatch")
)
