// Typerace Typing Game
//
// Players join a race room, and an operator starts a round once at least
// two players are connected. Each client streams its own typing progress
// as a percentage of the race paragraph correctly matched; the server
// relays progress to everyone else, assigns finish ranks in the order
// completion reports are processed, and broadcasts the final standings
// once every connected racer has finished.
//
// Features:
// - WebSockets per room ID: /path/:gameid and /path/:gameid/ws/:name
// - Players identified by URL-embedded display name; duplicates rejected
// - Authoritative room state: lobby -> racing -> finished -> lobby
// - Progress is validated server-side (range-checked, never regresses)
// - Finish ranks are dense 1..N in the order finishes are processed
// - Disconnected players drop out of the completion check mid-race
// - Rooms auto-reaped after configurable idle timeout
// - Random 8-char room IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"crypto/rand"
	_ "embed"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/typerace/race"
)

type roomState int

const (
	roomLobby roomState = iota
	roomRacing
	roomFinished
)

// Player holds the data we store server-side for one roster entry.
// Racing is false for players who joined while a round was already
// under way; they spectate until the next round.
type Player struct {
	Name     string
	Progress int
	Finished bool
	Rank     int
	Racing   bool
}

type Client struct {
	conn *websocket.Conn
	send chan any
	name string
}

type progressIntent struct {
	client   *Client
	progress int
}

type Hub struct {
	id      string
	clients map[*Client]bool
	players []*Player // insertion order

	register chan *Client
	unreg    chan *Client
	starts   chan *Client
	updates  chan progressIntent
	resets   chan *Client
	faults   chan *Client

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time

	state     roomState
	paragraph string
	startedAt time.Time
	nextRank  int
}

func newHub(gameID string) *Hub {
	now := time.Now()
	return &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		starts:     make(chan *Client),
		updates:    make(chan progressIntent),
		resets:     make(chan *Client),
		faults:     make(chan *Client),
		createdAt:  now,
		lastActive: now,
		nextRank:   1,
	}
}

// run serializes every roster mutation and state transition for this
// room, so rank assignment and the completion check never race.
func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(cfg, c)

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.removeClientLocked(cfg, c)
			h.mu.Unlock()

		case c := <-h.starts:
			h.handleStart(cfg, c)

		case u := <-h.updates:
			h.handleProgress(cfg, u)

		case c := <-h.resets:
			h.handleReset(cfg, c)

		case c := <-h.faults:
			h.mu.Lock()
			h.errorToLocked(cfg, c, errMalformedMessage.Error())
			h.mu.Unlock()
		}
	}
}

func (h *Hub) playerLocked(name string) *Player {
	for _, p := range h.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (h *Hub) playersListLocked() race.PlayersListMessage {
	players := make([]race.PlayerInfo, 0, len(h.players))
	for _, p := range h.players {
		players = append(players, race.PlayerInfo{
			Name:     p.Name,
			Progress: p.Progress,
		})
	}

	return race.PlayersListMessage{
		Type:        race.TypePlayersList,
		Players:     players,
		GameStarted: h.state == roomRacing,
	}
}

// broadcastLocked delivers msg to every connected client except the
// one given. Sends are fire-and-forget: a client whose buffer is full
// is evicted rather than allowed to stall the others.
func (h *Hub) broadcastLocked(cfg *Config, msg any, except *Client) {
	var dropped []*Client

	for client := range h.clients {
		if client == except {
			continue
		}
		select {
		case client.send <- msg:
		default:
			dropped = append(dropped, client)
		}
	}

	for _, c := range dropped {
		h.removeClientLocked(cfg, c)
	}
}

// errorToLocked reports a guard failure to the offending sender only.
// Clients that have already been removed are ignored; their send
// channel is closed and further intents from them are stale.
func (h *Hub) errorToLocked(cfg *Config, c *Client, message string) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- race.ErrorMessage{
		Type:    race.TypeError,
		Message: message,
	}:
	default:
		h.removeClientLocked(cfg, c)
	}
}

// removeClientLocked is the single leave path: eviction, websocket
// error, and normal close all end up here. Ranks already assigned to
// other players are untouched.
func (h *Hub) removeClientLocked(cfg *Config, c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)

	dst := h.players[:0]
	removed := false
	for _, p := range h.players {
		if p.Name == c.name {
			removed = true
			continue
		}
		dst = append(dst, p)
	}
	h.players = dst

	if !removed {
		return
	}

	logf(cfg, "GAMES: Player %q left %s", c.name, h.id)

	h.broadcastLocked(cfg, race.PlayerDisconnectedMessage{
		Type:       race.TypePlayerDisconnected,
		PlayerName: c.name,
	}, nil)

	// A racer dropping out may leave everyone else already finished.
	h.maybeFinishLocked(cfg)
}

func (h *Hub) handleRegister(cfg *Config, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if h.playerLocked(c.name) != nil {
		c.send <- race.ErrorMessage{
			Type:    race.TypeError,
			Message: errDuplicateName.Error(),
		}
		close(c.send)
		return
	}

	h.clients[c] = true
	h.players = append(h.players, &Player{
		Name: c.name,
	})

	logf(cfg, "GAMES: Player %q joined %s", c.name, h.id)

	c.send <- h.playersListLocked()

	h.broadcastLocked(cfg, race.NewPlayerMessage{
		Type:       race.TypeNewPlayer,
		PlayerName: c.name,
	}, c)
}

func (h *Hub) handleStart(cfg *Config, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if _, ok := h.clients[c]; !ok {
		return
	}

	switch {
	case h.state == roomRacing:
		h.errorToLocked(cfg, c, errRaceInProgress.Error())
		return
	case h.state == roomFinished:
		h.errorToLocked(cfg, c, errAwaitingReset.Error())
		return
	case len(h.players) < 2:
		h.errorToLocked(cfg, c, errInsufficientPlayers.Error())
		return
	}

	h.paragraph = randomParagraph()
	h.state = roomRacing
	h.startedAt = time.Now()
	h.nextRank = 1

	for _, p := range h.players {
		p.Progress = 0
		p.Finished = false
		p.Rank = 0
		p.Racing = true
	}

	logf(cfg, "GAMES: Race started in %s with %d players", h.id, len(h.players))

	h.broadcastLocked(cfg, race.GameStartMessage{
		Type:      race.TypeGameStart,
		Paragraph: h.paragraph,
	}, nil)
}

func (h *Hub) handleProgress(cfg *Config, u progressIntent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	c := u.client

	if _, ok := h.clients[c]; !ok {
		return
	}

	if h.state != roomRacing {
		h.errorToLocked(cfg, c, errNoActiveRace.Error())
		return
	}

	p := h.playerLocked(c.name)
	if p == nil || !p.Racing {
		h.errorToLocked(cfg, c, errNotRacing.Error())
		return
	}
	if p.Finished {
		h.errorToLocked(cfg, c, errAlreadyFinished.Error())
		return
	}
	if u.progress < 0 || u.progress > 100 || u.progress < p.Progress {
		h.errorToLocked(cfg, c, errInvalidProgress.Error())
		return
	}

	p.Progress = u.progress

	// The sender already has the authoritative local value.
	h.broadcastLocked(cfg, race.ProgressUpdateMessage{
		Type:       race.TypeProgressUpdate,
		PlayerName: p.Name,
		Progress:   p.Progress,
	}, c)

	if p.Progress < 100 {
		return
	}

	p.Finished = true
	p.Rank = h.nextRank
	h.nextRank++

	logf(cfg, "GAMES: Player %q finished %s with rank %d", p.Name, h.id, p.Rank)

	h.broadcastLocked(cfg, race.PlayerFinishedMessage{
		Type:       race.TypePlayerFinished,
		PlayerName: p.Name,
		Rank:       p.Rank,
	}, nil)

	h.maybeFinishLocked(cfg)
}

// maybeFinishLocked ends the race once every still-connected racer has
// finished. Players who disconnected mid-race no longer count.
func (h *Hub) maybeFinishLocked(cfg *Config) {
	if h.state != roomRacing {
		return
	}

	for _, p := range h.players {
		if p.Racing && !p.Finished {
			return
		}
	}

	h.state = roomFinished

	rankings := make([]race.RankEntry, 0, len(h.players))
	for _, p := range h.players {
		if p.Rank > 0 {
			rankings = append(rankings, race.RankEntry{
				Name: p.Name,
				Rank: p.Rank,
			})
		}
	}
	sort.Slice(rankings, func(i, j int) bool {
		return rankings[i].Rank < rankings[j].Rank
	})

	logf(cfg, "GAMES: Race in %s ended after %s with %d finishers",
		h.id,
		time.Since(h.startedAt).Round(time.Millisecond),
		len(rankings),
	)

	h.broadcastLocked(cfg, race.GameOverMessage{
		Type:     race.TypeGameOver,
		Rankings: rankings,
	}, nil)
}

// handleReset returns a finished room to the lobby, keeping the roster
// but clearing all race-scoped state. No minimum player count applies.
func (h *Hub) handleReset(cfg *Config, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if _, ok := h.clients[c]; !ok {
		return
	}

	if h.state != roomFinished {
		h.errorToLocked(cfg, c, errRaceNotFinished.Error())
		return
	}

	h.state = roomLobby
	h.paragraph = ""
	h.startedAt = time.Time{}
	h.nextRank = 1

	for _, p := range h.players {
		p.Progress = 0
		p.Finished = false
		p.Rank = 0
		p.Racing = false
	}

	logf(cfg, "GAMES: Room %s reset to lobby", h.id)

	// A fresh roster snapshot with game_started=false tells every
	// client to drop back to the lobby view.
	h.broadcastLocked(cfg, h.playersListLocked(), nil)
}

// closeAll disconnects all clients of this hub (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
	h.players = nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by room ID, so each
// $path/$gameid is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
}

func newGameManager(idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gameID)
	gm.hubs[gameID] = hub
	go hub.run(cfg)
	return hub
}

// newGameID generates a crypto-random room ID and ensures it doesn't
// collide with existing rooms.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			hub.mu.RLock()
			last := hub.lastActive
			hub.mu.RUnlock()

			if last.Before(cutoff) {
				delete(gm.hubs, id)
				go hub.closeAll()
			}
		}
		gm.mu.Unlock()
	}
}

// WebSocket handler that picks the hub based on :gameid. Opening the
// channel is the join; closing it is the leave.
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		name := strings.TrimSpace(ps.ByName("name"))
		if name == "" {
			http.Error(w, "missing player name", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(cfg, gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
			name: name,
		}

		hub.register <- client

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg race.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.faults <- c
			continue
		}

		switch msg.Type {
		case race.TypeStartGame:
			h.starts <- c
		case race.TypeProgressUpdate:
			h.updates <- progressIntent{
				client:   c,
				progress: msg.Progress,
			}
		case race.TypePlayAgain:
			h.resets <- c
		default:
			h.faults <- c
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed typing/index.html
var indexHTML []byte

//go:embed typing/app.css
var typeraceCSS []byte

//go:embed typing/app.js
var typeraceJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(typeraceCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(typeraceJS)
	}
}

// redirectNewGame handles GET /path by generating a new random room ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerTypingGame sets up routes so that:
//   - $path                    → redirects to new random room (8-char ID)
//   - $path/:gameid            → HTML client
//   - $path/:gameid/ws/:name   → WebSocket for that room, as display name
//   - $path/:gameid/qr         → PNG QR code for that room URL
func registerTypingGame(cfg *Config, path string, mux *httprouter.Router) {
	gm := newGameManager(cfg.sessionTimeout)

	// Root path → redirect to new random room
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	// Per-room client view (HTML)
	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg))

	// Shared assets (no gameid in route)
	mux.GET(cfg.prefix+"/assets/typing/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/typing/app.js", getJsHandler(cfg))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:gameid/ws/:name", serveWSForManager(cfg, gm))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}
