/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

// Outbound message types.
const (
	TypeGameStarted  = "game-started"
	TypeRestartGame  = "restart-game"
	TypeQuestion     = "question"
	TypeUpdateScores = "update-scores"
	TypeGameEnded    = "game-ended"
	TypeGameResult   = "game-result"
	TypeRoomExpired  = "room-expired"
	TypeError        = "error"
)

// Per-player game outcomes.
const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
	OutcomeDraw = "draw"
)

// RoomMessage is for notifications that carry nothing but the room
// ("game-started", "restart-game", "room-expired").
type RoomMessage struct {
	Type      string `json:"type"`
	RoomToken string `json:"roomToken"`
}

// QuestionMessage carries the active question. CorrectAnswer is only
// filled in when the manager is configured to reveal answers.
type QuestionMessage struct {
	Type          string   `json:"type"` // "question"
	RoomToken     string   `json:"roomToken"`
	Index         int      `json:"index"`
	Total         int      `json:"total"`
	Prompt        string   `json:"prompt"`
	Choices       []string `json:"choices"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

// PlayerScore is one row of a score snapshot.
type PlayerScore struct {
	DisplayName string `json:"displayName"`
	RoomToken   string `json:"roomToken"`
	Score       int    `json:"score"`
}

// ScoresMessage is the live leaderboard for a room, in join order.
type ScoresMessage struct {
	Type      string        `json:"type"` // "update-scores"
	RoomToken string        `json:"roomToken"`
	Scores    []PlayerScore `json:"scores"`
}

// GameEndedMessage is the terminal broadcast, players keyed by connection id.
type GameEndedMessage struct {
	Type      string                 `json:"type"` // "game-ended"
	RoomToken string                 `json:"roomToken"`
	Players   map[ConnID]PlayerScore `json:"players"`
}

// GameResultMessage is sent to each player individually.
type GameResultMessage struct {
	Type      string `json:"type"` // "game-result"
	RoomToken string `json:"roomToken"`
	Outcome   string `json:"outcome"` // "won", "lost" or "draw"
	Message   string `json:"message"`
}

// ErrorMessage acknowledges a rejected request to the connection that sent it.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorMessage builds the rejection sent back for err.
func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    TypeError,
		Code:    ErrorCode(err),
		Message: err.Error(),
	}
}

func resultText(outcome string) string {
	switch outcome {
	case OutcomeWon:
		return "You won!"
	case OutcomeLost:
		return "You lost!"
	default:
		return "It's a draw!"
	}
}
