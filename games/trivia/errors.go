/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import "errors"

var (
	ErrPoolNotReady     = errors.New("question pool is not loaded yet")
	ErrInvalidJoin      = errors.New("invalid join request")
	ErrRoomFull         = errors.New("room is full")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrUnknownRoom      = errors.New("unknown room")
	ErrNoActiveQuestion = errors.New("no active question")
	ErrStaleAnswer      = errors.New("answer is for a different question")
	ErrNotEnoughPlayers = errors.New("room needs two players")
)

// ErrorCode maps a manager error to the short code sent to clients.
// Errors that did not originate here map to "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrPoolNotReady):
		return "pool-not-ready"
	case errors.Is(err, ErrInvalidJoin):
		return "invalid-join"
	case errors.Is(err, ErrRoomFull):
		return "room-full"
	case errors.Is(err, ErrUnknownPlayer):
		return "unknown-player"
	case errors.Is(err, ErrUnknownRoom):
		return "unknown-room"
	case errors.Is(err, ErrNoActiveQuestion):
		return "no-active-question"
	case errors.Is(err, ErrStaleAnswer):
		return "stale-answer"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "not-enough-players"
	default:
		return "internal"
	}
}
