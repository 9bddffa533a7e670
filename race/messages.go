// Package race implements the typing race wire protocol and the
// client-side synchronization core: a pure progress computation, a
// read-only projection of room state built from server events, and a
// websocket client suitable for bots and tests.
package race

import (
	"encoding/json"
	"fmt"
)

// Message types sent by clients.
const (
	TypeStartGame      = "start_game"
	TypeProgressUpdate = "progress_update"
	TypePlayAgain      = "play_again"
)

// Message types sent by the server.
const (
	TypePlayersList        = "players_list"
	TypeNewPlayer          = "new_player"
	TypePlayerDisconnected = "player_disconnected"
	TypeGameStart          = "game_start"
	TypePlayerFinished     = "player_finished"
	TypeGameOver           = "game_over"
	TypeError              = "error"
)

// ClientMessage is the envelope for every player intent.
type ClientMessage struct {
	Type     string `json:"type"`
	Progress int    `json:"progress"` // progress_update only
}

// PlayerInfo is one roster entry in a players_list message.
type PlayerInfo struct {
	Name     string `json:"name"`
	Progress int    `json:"progress"`
}

// PlayersListMessage is sent to a participant on join, and to everyone
// when the room returns to the lobby.
type PlayersListMessage struct {
	Type        string       `json:"type"`
	Players     []PlayerInfo `json:"players"`
	GameStarted bool         `json:"game_started"`
}

type NewPlayerMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name"`
}

type PlayerDisconnectedMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name"`
}

type GameStartMessage struct {
	Type      string `json:"type"`
	Paragraph string `json:"paragraph"`
}

type ProgressUpdateMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name"`
	Progress   int    `json:"progress"`
}

type PlayerFinishedMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name"`
	Rank       int    `json:"rank"`
}

type GameOverMessage struct {
	Type     string      `json:"type"`
	Rankings []RankEntry `json:"rankings"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RankEntry is one final standing. On the wire it is a two-element
// [name, rank] array.
type RankEntry struct {
	Name string
	Rank int
}

func (e RankEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Name, e.Rank})
}

func (e *RankEntry) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &e.Name); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.Rank)
}

// Decode parses one server message into its concrete type.
func Decode(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	var msg any
	switch envelope.Type {
	case TypePlayersList:
		msg = &PlayersListMessage{}
	case TypeNewPlayer:
		msg = &NewPlayerMessage{}
	case TypePlayerDisconnected:
		msg = &PlayerDisconnectedMessage{}
	case TypeGameStart:
		msg = &GameStartMessage{}
	case TypeProgressUpdate:
		msg = &ProgressUpdateMessage{}
	case TypePlayerFinished:
		msg = &PlayerFinishedMessage{}
	case TypeGameOver:
		msg = &GameOverMessage{}
	case TypeError:
		msg = &ErrorMessage{}
	default:
		return nil, fmt.Errorf("unknown message type %q", envelope.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
