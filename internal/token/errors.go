package token

import "errors"

var (
	// ErrTokenGeneration indicates token generation failed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidToken indicates the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("token expired")

	// ErrInvalidStepUpProof indicates a step-up proof was malformed, stale,
	// or does not cover the required factors.
	ErrInvalidStepUpProof = errors.New("invalid step-up proof")
)
