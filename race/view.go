package race

// RoomState mirrors the server-side race lifecycle.
type RoomState int

const (
	StateLobby RoomState = iota
	StateRacing
	StateFinished
)

func (s RoomState) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateRacing:
		return "racing"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// PlayerView is one roster entry as the client sees it.
type PlayerView struct {
	Name     string
	Progress int
	Finished bool
	Rank     int
}

// View is a local, read-only projection of room state. It is mutated
// only by applying inbound server events, never by local guesses; the
// one exception is the caller's own keystroke feedback, which the
// server's broadcasts reconcile.
type View struct {
	Self      string
	State     RoomState
	Paragraph string
	Players   []PlayerView
	Rankings  []RankEntry
	LastError string
}

func NewView(self string) *View {
	return &View{Self: self}
}

// Apply folds one decoded server message into the view. Unrecognized
// values are ignored.
func (v *View) Apply(msg any) {
	switch m := msg.(type) {
	case *PlayersListMessage:
		v.Players = v.Players[:0]
		for _, p := range m.Players {
			v.Players = append(v.Players, PlayerView{Name: p.Name, Progress: p.Progress})
		}
		if m.GameStarted {
			v.State = StateRacing
		} else {
			v.State = StateLobby
			v.Paragraph = ""
			v.Rankings = nil
		}

	case *NewPlayerMessage:
		if m.PlayerName == v.Self {
			return
		}
		for _, p := range v.Players {
			if p.Name == m.PlayerName {
				return
			}
		}
		v.Players = append(v.Players, PlayerView{Name: m.PlayerName})

	case *PlayerDisconnectedMessage:
		for i, p := range v.Players {
			if p.Name == m.PlayerName {
				v.Players = append(v.Players[:i], v.Players[i+1:]...)
				break
			}
		}

	case *GameStartMessage:
		v.State = StateRacing
		v.Paragraph = m.Paragraph
		v.Rankings = nil
		for i := range v.Players {
			v.Players[i].Progress = 0
			v.Players[i].Finished = false
			v.Players[i].Rank = 0
		}

	case *ProgressUpdateMessage:
		if p := v.player(m.PlayerName); p != nil {
			p.Progress = m.Progress
		}

	case *PlayerFinishedMessage:
		if p := v.player(m.PlayerName); p != nil {
			p.Progress = 100
			p.Finished = true
			p.Rank = m.Rank
		}

	case *GameOverMessage:
		v.State = StateFinished
		v.Rankings = m.Rankings

	case *ErrorMessage:
		v.LastError = m.Message
	}
}

// InputLocked reports whether local typing should be ignored: outside
// a running race, or once the local player has finished.
func (v *View) InputLocked() bool {
	if v.State != StateRacing {
		return true
	}
	if p := v.player(v.Self); p != nil {
		return p.Finished
	}
	return false
}

func (v *View) player(name string) *PlayerView {
	for i := range v.Players {
		if v.Players[i].Name == name {
			return &v.Players[i]
		}
	}
	return nil
}
