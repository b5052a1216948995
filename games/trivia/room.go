/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxPlayers        = 2
	maxDisplayNameLen = 32
	maxRoomTokenLen   = 64
)

// ConnID identifies a single client connection.
type ConnID string

// Player is a seated participant. Players are owned by their Room.
type Player struct {
	ID          ConnID
	DisplayName string
	RoomToken   string
	Score       int
	Answered    bool
	JoinedAt    time.Time
}

// Room is one two-player game session.
type Room struct {
	token   string
	players []*Player // join order

	started   bool
	selection []Question
	index     int

	// pending is set between an accepted answer and a paced dispatch of
	// the next question.
	pending bool
	// generation is bumped on every start, restart and end.
	generation uint64

	createdAt  time.Time
	lastActive time.Time
}

func newRoom(token string, now time.Time) *Room {
	return &Room{
		token:      token,
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) player(id ConnID) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) removePlayer(id ConnID) bool {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) full() bool {
	return len(r.players) >= maxPlayers
}

func (r *Room) activeQuestion() (Question, bool) {
	if !r.started || r.pending || r.index < 0 || r.index >= len(r.selection) {
		return Question{}, false
	}
	return r.selection[r.index], true
}

func (r *Room) reset() {
	r.players = nil
	r.started = false
	r.selection = nil
	r.index = 0
	r.pending = false
	r.generation++
}

func (r *Room) scores() []PlayerScore {
	out := make([]PlayerScore, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, PlayerScore{
			DisplayName: p.DisplayName,
			RoomToken:   r.token,
			Score:       p.Score,
		})
	}
	return out
}

// RoomView is a point-in-time copy of a room's state.
type RoomView struct {
	Token        string
	Started      bool
	Index        int
	SelectionLen int
	Players      []Player
	CreatedAt    time.Time
	LastActive   time.Time
}

func (r *Room) view() RoomView {
	players := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, *p)
	}

	return RoomView{
		Token:        r.token,
		Started:      r.started,
		Index:        r.index,
		SelectionLen: len(r.selection),
		Players:      players,
		CreatedAt:    r.createdAt,
		LastActive:   r.lastActive,
	}
}

func normalizeJoin(displayName, roomToken string) (string, string, error) {
	name := strings.TrimSpace(displayName)
	token := strings.TrimSpace(roomToken)

	switch {
	case name == "":
		return "", "", fmt.Errorf("%w: display name is required", ErrInvalidJoin)
	case token == "":
		return "", "", fmt.Errorf("%w: room is required", ErrInvalidJoin)
	case utf8.RuneCountInString(name) > maxDisplayNameLen:
		return "", "", fmt.Errorf("%w: display name is longer than %d characters", ErrInvalidJoin, maxDisplayNameLen)
	case utf8.RuneCountInString(token) > maxRoomTokenLen:
		return "", "", fmt.Errorf("%w: room is longer than %d characters", ErrInvalidJoin, maxRoomTokenLen)
	}

	return name, token, nil
}
