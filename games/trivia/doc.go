// Package trivia implements two-player trivia rooms.
//
// A Manager owns every room. Clients join a room by token; once two
// players are seated the game starts, a selection of questions is drawn
// from the Pool, and every accepted answer scores the answering player
// (+1 correct, -1 wrong) and advances the room to the next question. When
// the selection is exhausted, or a player leaves mid-game, the game ends,
// each player is told whether they won, lost or drew, and the room is
// cleared.
//
// The package does no I/O beyond loading the question file. Outbound
// messages go through a Notifier supplied by the transport.
package trivia
