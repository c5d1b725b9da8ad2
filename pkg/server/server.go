// Package server is the Server Authority (spec.md §4.6): connection
// lifecycle, the input intake path, the periodic step that drains inputs
// and advances the Simulation Engine, and room assignment. It is modeled
// on the teacher's GameManager (pkg/game/game.go) — a ticked loop around
// queue draining and broadcast — generalized from one fixed game state to
// arbitrary rooms of WorldObjects.
package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solstice-games/syncstep/pkg/log"
	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/scheduler"
	"github.com/solstice-games/syncstep/pkg/serializer"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/transmitter"
	"github.com/solstice-games/syncstep/pkg/transport"
	"github.com/solstice-games/syncstep/pkg/wire"
	"github.com/solstice-games/syncstep/pkg/world"
)

// LobbyRoomName is the room every newly connected player starts in.
const LobbyRoomName = "/lobby"

var (
	ErrUnknownPlayer     = fmt.Errorf("server: unknown player")
	ErrUnknownRoom       = fmt.Errorf("server: unknown room")
	ErrUnknownObject     = fmt.Errorf("server: unknown object")
	ErrRoomAlreadyExists = fmt.Errorf("server: room already exists")
)

type connectionState int

const (
	stateNew connectionState = iota
	stateConnected
)

type connectedPlayer struct {
	id               uint32
	pipe             transport.Pipe
	state            connectionState
	roomName         string
	lastHandledInput uint32
	lastSeen         time.Time
	// traceID identifies this connection's trace batches in log output
	// (spec.md §6 trace), independent of RunID which identifies the
	// server process across every connection.
	traceID string
}

type roomState struct {
	name         string
	tx           *transmitter.Transmitter
	knownObjects map[uint32]struct{}
	syncCounter  int
}

// Options configures a Server.
type Options struct {
	Engine *simulation.Engine
	Codec  *serializer.Serializer

	TickInterval time.Duration
	// UpdateRate is how many ticks elapse between syncs to a room (1 means
	// every tick).
	UpdateRate int
	// FullSyncRate is how many periodic syncs elapse between full resyncs
	// of an already-synced room (on top of the immediate full sync every
	// newly assigned player gets).
	FullSyncRate int
	IdleTimeout time.Duration

	// RunID identifies this server process in its tick-loop start,
	// player-join and trace log lines, for correlating a session across
	// log aggregation. A random uuid is generated if left empty.
	RunID string
}

// Server is the Server Authority.
type Server struct {
	engine *simulation.Engine
	codec  *serializer.Serializer
	runID  string

	updateRate   int
	fullSyncRate int
	idleTimeout  time.Duration

	mu           sync.Mutex
	players      map[uint32]*connectedPlayer
	nextPlayerID uint32
	rooms        map[string]*roomState
	// inputQueues buckets every received-but-not-yet-applied input by
	// (playerID, step) — a flat structure keyed by the pair rather than a
	// nested map[playerId]map[step][]input (spec.md §9 Design Notes:
	// "a flat ordered structure keyed by (playerId, step) ... is
	// preferable"). drainInputs pops each player's smallest ready step
	// every tick (spec.md §4.6 step 2).
	inputQueues map[inputKey][]simulation.Input

	scheduler *scheduler.Scheduler
}

// inputKey identifies one player's input bucket for a single logical
// step.
type inputKey struct {
	playerID uint32
	step     uint64
}

func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("server: engine is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("server: codec is required")
	}
	updateRate := opts.UpdateRate
	if updateRate <= 0 {
		updateRate = 1
	}
	fullSyncRate := opts.FullSyncRate
	if fullSyncRate <= 0 {
		fullSyncRate = 30
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	s := &Server{
		engine:       opts.Engine,
		codec:        opts.Codec,
		runID:        runID,
		updateRate:   updateRate,
		fullSyncRate: fullSyncRate,
		idleTimeout:  opts.IdleTimeout,
		players:      make(map[uint32]*connectedPlayer),
		rooms:        make(map[string]*roomState),
		inputQueues:  make(map[inputKey][]simulation.Input),
	}
	s.rooms[LobbyRoomName] = newRoomState(LobbyRoomName, opts.Codec)

	sched, err := scheduler.New(scheduler.Options{
		Interval: opts.TickInterval,
		Tick:     s.tick,
		OnSlowLoop: func(delayCounter int) {
			log.Warn("server: tick loop running slow (delay counter %d)", delayCounter)
		},
	})
	if err != nil {
		return nil, err
	}
	s.scheduler = sched
	return s, nil
}

func newRoomState(name string, codec *serializer.Serializer) *roomState {
	return &roomState{name: name, tx: transmitter.New(codec), knownObjects: make(map[uint32]struct{})}
}

// RunID identifies this server process in its tick-loop start,
// player-join and trace log lines.
func (s *Server) RunID() string { return s.runID }

// Start runs the periodic tick loop until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	log.Info("server: run %s starting tick loop", s.runID)
	return s.scheduler.Start(ctx)
}

// Connect registers a newly accepted pipe as a player and puts them in the
// lobby room, returning their allocated player id. The caller still owns
// reading from pipe and must call HandleMessage for every inbound
// wire.Message. The caller is also responsible for sending the returned
// id onward as a playerJoined event (see SendPlayerJoined) once it has
// finished wiring the connection up.
func (s *Server) Connect(pipe transport.Pipe) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPlayerID++
	id := s.nextPlayerID
	s.players[id] = &connectedPlayer{
		id:       id,
		pipe:     pipe,
		state:    stateNew,
		roomName: LobbyRoomName,
		lastSeen: time.Now(),
		traceID:  uuid.NewString(),
	}
	return id
}

// SendPlayerJoined sends the s→c playerJoined event (spec.md §6) for
// playerID. The caller invokes this once, right after Connect, so the
// dialing client learns the id the server authority allocated it.
func (s *Server) SendPlayerJoined(ctx context.Context, playerID uint32) error {
	s.mu.Lock()
	p, ok := s.players[playerID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, playerID)
	}

	payload, err := wire.EncodePlayerJoined(wire.PlayerJoined{
		ID:       playerID,
		PlayerID: playerID,
		JoinTime: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("server: encoding playerJoined for %d: %w", playerID, err)
	}
	encoded, err := wire.Encode(&wire.Message{Type: wire.MessageTypePlayerJoined, Payload: payload})
	if err != nil {
		return fmt.Errorf("server: encoding playerJoined envelope for %d: %w", playerID, err)
	}
	log.Info("server: run %s player %d joined", s.runID, playerID)
	return p.pipe.Send(ctx, encoded)
}

// Disconnect removes a player and closes their pipe.
func (s *Server) Disconnect(playerID uint32) error {
	s.mu.Lock()
	p, ok := s.players[playerID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, playerID)
	}
	delete(s.players, playerID)
	s.dropQueuedInputs(playerID)
	s.mu.Unlock()

	if p.pipe != nil {
		return p.pipe.Close()
	}
	return nil
}

// HandleMessage processes one inbound message from playerID.
func (s *Server) HandleMessage(playerID uint32, msg *wire.Message) error {
	s.mu.Lock()
	p, ok := s.players[playerID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, playerID)
	}
	p.lastSeen = time.Now()
	p.state = stateConnected
	s.mu.Unlock()

	switch msg.Type {
	case wire.MessageTypeInput:
		inputID, step, payload, err := wire.DecodeInput(msg.Payload)
		if err != nil {
			return fmt.Errorf("server: decoding input from player %d: %w", playerID, err)
		}
		input := simulation.Input{PlayerID: playerID, InputID: inputID, Step: step, Payload: payload}
		key := inputKey{playerID: playerID, step: step}
		s.mu.Lock()
		// Inputs for the same step are preserved in arrival order
		// (spec.md §4.6 "Input path (server)").
		s.inputQueues[key] = append(s.inputQueues[key], input)
		s.mu.Unlock()
	case wire.MessageTypePing:
		return p.pipe.Send(context.Background(), mustEncodePong(msg.Payload))
	case wire.MessageTypeTrace:
		entries, err := wire.DecodeTraceBatch(msg.Payload)
		if err != nil {
			return fmt.Errorf("server: decoding trace batch from player %d: %w", playerID, err)
		}
		log.Debug("server: run %s trace %s from player %d: %d entries", s.runID, p.traceID, playerID, len(entries))
	default:
		return fmt.Errorf("server: unhandled message type %d from player %d", msg.Type, playerID)
	}
	return nil
}

// mustEncodePong echoes payload back unchanged, so the client can pair a
// pong with the send timestamp its ping carried (pkg/client's RTT
// discipline).
func mustEncodePong(payload []byte) []byte {
	encoded, _ := wire.Encode(&wire.Message{Type: wire.MessageTypePong, Payload: payload})
	return encoded
}

// LastHandledInput reports the most recent input id the server has
// applied for playerID, which a caller echoes back so the client knows
// which of its predictions to stop re-enacting.
func (s *Server) LastHandledInput(playerID uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return 0, false
	}
	return p.lastHandledInput, true
}

// RoomSummary is a point-in-time snapshot of one room, for the admin
// HTTP surface.
type RoomSummary struct {
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	ObjectCount int    `json:"objectCount"`
}

// RoomSummaries reports every room's name, connected player count, and
// live object count.
func (s *Server) RoomSummaries() []RoomSummary {
	s.mu.Lock()
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	counts := make(map[string]int, len(s.rooms))
	for _, p := range s.players {
		counts[p.roomName]++
	}
	s.mu.Unlock()

	summaries := make([]RoomSummary, 0, len(names))
	for _, name := range names {
		objectCount := len(s.engine.World().Query(world.ByRoom(name)))
		summaries = append(summaries, RoomSummary{
			Name:        name,
			PlayerCount: counts[name],
			ObjectCount: objectCount,
		})
	}
	return summaries
}

// PlayerCount reports the number of currently connected players.
func (s *Server) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// CreateRoom adds a new, empty room.
func (s *Server) CreateRoom(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[name]; exists {
		return fmt.Errorf("%w: %s", ErrRoomAlreadyExists, name)
	}
	s.rooms[name] = newRoomState(name, s.codec)
	return nil
}

// AssignObjectToRoom moves an existing world object into a room.
func (s *Server) AssignObjectToRoom(objectID uint32, roomName string) error {
	s.mu.Lock()
	if _, ok := s.rooms[roomName]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRoom, roomName)
	}
	s.mu.Unlock()

	obj, ok := s.engine.World().Get(objectID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownObject, objectID)
	}
	setter, ok := obj.(interface{ SetRoomName(string) })
	if !ok {
		return fmt.Errorf("server: object %d cannot be assigned a room", objectID)
	}
	setter.SetRoomName(roomName)
	return nil
}

// AssignPlayerToRoom moves playerID into roomName and immediately sends
// them a full sync of everything already in that room, bypassing the
// room's regular diffing memory so other already-synced players are
// unaffected.
func (s *Server) AssignPlayerToRoom(ctx context.Context, playerID uint32, roomName string) error {
	s.mu.Lock()
	p, ok := s.players[playerID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, playerID)
	}
	if _, ok := s.rooms[roomName]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRoom, roomName)
	}
	previousRoom := p.roomName
	p.roomName = roomName
	pipe := p.pipe
	s.mu.Unlock()

	objects := s.engine.World().Query(world.ByRoom(roomName))
	if err := s.sendFullSync(ctx, pipe, objects); err != nil {
		return err
	}
	return s.sendRoomUpdate(ctx, pipe, playerID, previousRoom, roomName)
}

func (s *Server) sendRoomUpdate(ctx context.Context, pipe transport.Pipe, playerID uint32, from, to string) error {
	payload, err := wire.EncodeRoomUpdate(wire.RoomUpdate{PlayerID: playerID, From: from, To: to})
	if err != nil {
		return fmt.Errorf("server: encoding roomUpdate for player %d: %w", playerID, err)
	}
	encoded, err := wire.Encode(&wire.Message{Type: wire.MessageTypeRoomUpdate, Payload: payload})
	if err != nil {
		return fmt.Errorf("server: encoding roomUpdate envelope for player %d: %w", playerID, err)
	}
	return pipe.Send(ctx, encoded)
}

func (s *Server) sendFullSync(ctx context.Context, pipe transport.Pipe, objects []object.WorldObject) error {
	tx := transmitter.New(s.codec)
	for _, obj := range objects {
		tx.QueueCreate(obj)
	}
	payload, err := tx.SerializePayload(0, true)
	if err != nil {
		return fmt.Errorf("server: building full sync payload: %w", err)
	}
	encoded, err := wire.Encode(&wire.Message{Type: wire.MessageTypeSync, Payload: payload})
	if err != nil {
		return fmt.Errorf("server: encoding full sync envelope: %w", err)
	}
	return pipe.Send(ctx, encoded)
}

// tick is the scheduler's TickFunc: drain queued inputs, advance the
// simulation, disconnect idle players, then sync every room due this
// tick.
func (s *Server) tick(ctx context.Context, dt time.Duration, step uint64) error {
	s.drainInputs()

	if err := s.engine.Step(false, dt.Seconds(), false); err != nil {
		return fmt.Errorf("server: simulation step failed: %w", err)
	}

	s.disconnectIdlePlayers()

	for _, room := range s.roomSnapshot() {
		if err := s.syncRoom(ctx, room, step); err != nil {
			log.Error("server: syncing room %s: %v", room.name, err)
		}
	}
	return nil
}

// drainInputs implements spec.md §4.6 step 2: for each player queue, find
// the smallest step key; if it is at or before the current stepCount, pop
// that bucket and apply every input in it (in arrival order), then repeat
// for the next-smallest step still due. A step bucket is never dispatched
// early, and once popped it cannot be re-dispatched (spec.md §8 testable
// property 6).
func (s *Server) drainInputs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.engine.World().StepCount()

	dueSteps := make(map[uint32][]uint64)
	for k := range s.inputQueues {
		if k.step <= current {
			dueSteps[k.playerID] = append(dueSteps[k.playerID], k.step)
		}
	}

	for playerID, steps := range dueSteps {
		sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
		for _, step := range steps {
			key := inputKey{playerID: playerID, step: step}
			for _, in := range s.inputQueues[key] {
				s.engine.ProcessInput(in, 0)
				if p, ok := s.players[playerID]; ok {
					p.lastHandledInput = in.InputID
				}
			}
			delete(s.inputQueues, key)
		}
	}
}

// dropQueuedInputs discards every pending input bucket for playerID
// (spec.md §5 cancellation: "pending inputs for that player are
// dropped"). Callers must already hold s.mu.
func (s *Server) dropQueuedInputs(playerID uint32) {
	for k := range s.inputQueues {
		if k.playerID == playerID {
			delete(s.inputQueues, k)
		}
	}
}

func (s *Server) disconnectIdlePlayers() {
	if s.idleTimeout <= 0 {
		return
	}
	s.mu.Lock()
	var stale []uint32
	now := time.Now()
	for id, p := range s.players {
		if now.Sub(p.lastSeen) > s.idleTimeout {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		log.Info("server: disconnecting idle player %d", id)
		if err := s.Disconnect(id); err != nil {
			log.Error("server: disconnecting idle player %d: %v", id, err)
		}
	}
}

func (s *Server) roomSnapshot() []*roomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]*roomState, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (s *Server) playersInRoom(roomName string) []*connectedPlayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var players []*connectedPlayer
	for _, p := range s.players {
		if p.roomName == roomName {
			players = append(players, p)
		}
	}
	return players
}

func (s *Server) syncRoom(ctx context.Context, r *roomState, step uint64) error {
	r.syncCounter++
	if r.syncCounter%s.updateRate != 0 {
		return nil
	}
	fullResync := (r.syncCounter/s.updateRate)%s.fullSyncRate == 0

	current := s.engine.World().Query(world.ByRoom(r.name))
	currentIDs := make(map[uint32]struct{}, len(current))
	for _, obj := range current {
		currentIDs[obj.GetID()] = struct{}{}
		if _, known := r.knownObjects[obj.GetID()]; known {
			r.tx.QueueUpdate(obj)
		} else {
			r.tx.QueueCreate(obj)
		}
	}
	for id := range r.knownObjects {
		if _, stillThere := currentIDs[id]; !stillThere {
			r.tx.QueueDestroy(id)
		}
	}
	r.knownObjects = currentIDs

	payload, err := r.tx.SerializePayload(step, fullResync)
	r.tx.ClearPayload()
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}

	encoded, err := wire.Encode(&wire.Message{Type: wire.MessageTypeSync, Payload: payload})
	if err != nil {
		return err
	}

	for _, p := range s.playersInRoom(r.name) {
		if err := p.pipe.Send(ctx, encoded); err != nil {
			log.Error("server: sending sync to player %d: %v", p.id, err)
		}
	}
	return nil
}
