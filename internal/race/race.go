// Package race runs the race state machine: countdown, racing and finished.
package race

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/racecontrol/racesim/internal/ai"
	"github.com/racecontrol/racesim/internal/car"
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/leaderboard"
	"github.com/racecontrol/racesim/internal/params"
	"github.com/racecontrol/racesim/internal/track"
	"github.com/racecontrol/racesim/pkg/core"
)

// raceStream separates the race's random stream from the per-driver streams that share the seed.
const raceStream = 0x9e3779b97f4a7c15

// Race owns every car in the session. It is not safe for concurrent use; one goroutine steps it
// and readers take snapshots.
type Race struct {
	id      uuid.UUID
	version string
	track   *track.Track
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	rng     *rand.Rand

	cars    []*car.Car
	drivers []*ai.Controller // nil for the player
	player  int
	gates   []LapGate
	laps    [][]float64

	state     string
	tick      uint64
	clock     float64
	countdown float64
	started   time.Time
	ended     time.Time
	timedOut  bool

	ranked    []*car.Car
	order     []core.Finish
	fastest   *float64
	safetyCar SafetyCar
	events    []core.RaceEvent
}

// Option configures a Race.
type Option func(*Race)

// WithLogger sets the logger for state transitions and lap records.
func WithLogger(l *slog.Logger) Option {
	return func(r *Race) { r.logger = l }
}

// WithClock replaces the wall clock used to stamp events and snapshots.
func WithClock(now func() time.Time) Option {
	return func(r *Race) { r.now = now }
}

// WithID fixes the session id instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(r *Race) { r.id = id }
}

// WithVersion records the build version in the race description.
func WithVersion(v string) Option {
	return func(r *Race) { r.version = v }
}

// New validates cfg, places the grid behind the start line and arms the countdown.
func New(t *track.Track, cfg Config, opts ...Option) (*Race, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no track", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Race{
		id:        uuid.New(),
		track:     t,
		cfg:       cfg,
		logger:    slog.Default(),
		now:       time.Now,
		rng:       rand.New(rand.NewPCG(cfg.Seed, raceStream)),
		player:    -1,
		state:     core.StateCountdown,
		countdown: cfg.Countdown,
		safetyCar: SafetyCar{Rate: cfg.SafetyCarRate, Duration: cfg.SafetyCarDuration},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.buildGrid(cfg.slots())
	r.started = r.now()
	r.ranked = leaderboard.Rank(r.cars, t.Length())
	r.applyRanking()

	r.emit(core.RaceEvent{
		Kind:    core.EventRaceStart,
		Message: fmt.Sprintf("%d cars, %d laps at %s", len(r.cars), cfg.TotalLaps, t.Name()),
	})
	r.logger.Info("Race created", "id", r.id, "track", t.Name(), "cars", len(r.cars), "laps", cfg.TotalLaps)
	if r.countdown == 0 {
		r.lightsOut()
	}
	return r, nil
}

// gridPosition is the slot for the i-th car: two abreast, rows stepping back from the line.
func (r *Race) gridPosition(i int) geo.Vec {
	dir := r.track.StartDirection()
	normal := geo.Vec{X: -dir.Y, Y: dir.X}
	back := GridSetback + float64(i/2)*GridRowSpacing
	side := GridLateral / 2
	if i%2 == 1 {
		side = -side
	}
	return r.track.StartLine().Sub(dir.Scale(back)).Add(normal.Scale(side))
}

func (r *Race) buildGrid(slots []GridSlot) {
	heading := r.track.StartDirection().HeadingDegrees()
	compounds := params.Compounds()
	for i, s := range slots {
		team := Teams[i%len(Teams)]
		if s.Team != "" {
			team.Name = s.Team
		}
		if s.Color != "" {
			team.Color = s.Color
		}
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("%s #%d", team.Name, i)
			if s.Player {
				name = "Player"
			}
		}
		// always draw so the stream does not depend on which slots are pinned
		compound := compounds[r.rng.IntN(len(compounds))]
		if s.Compound != nil {
			compound = *s.Compound
		}

		c := car.New(car.Spec{
			ID:         i,
			Name:       name,
			Team:       team.Name,
			Color:      team.Color,
			IsPlayer:   s.Player,
			Position:   r.gridPosition(i),
			Heading:    heading,
			Compound:   compound,
			EngineMode: params.Race,
			Downforce:  r.cfg.Downforce,
		})
		c.Locate(r.track)
		r.cars = append(r.cars, c)

		var driver *ai.Controller
		if s.Player {
			r.player = i
		} else {
			driver = ai.New(i, r.cfg.Seed)
		}
		r.drivers = append(r.drivers, driver)

		gate := NewLapGate(r.cfg.CaptureRadius, r.cfg.Debounce)
		gate.Prime(r.track.StartLineOffset(c.Position))
		r.gates = append(r.gates, gate)
		r.laps = append(r.laps, nil)
	}
}

// clampStep turns a wall-clock delta into a usable tick length.
func (r *Race) clampStep(dt float64) float64 {
	if math.IsNaN(dt) || dt <= 0 {
		return 0
	}
	return math.Min(dt, r.cfg.MaxStep)
}

// Step advances the race by dt seconds. player is the intent for the player car and is ignored
// when there is none. Deltas above MaxStep are clamped; NaN or non-positive deltas do nothing.
func (r *Race) Step(dt float64, player car.Intent) {
	dt = r.clampStep(dt)
	if dt == 0 || r.state == core.StateFinished {
		return
	}
	r.tick++

	if r.state == core.StateCountdown {
		r.countdown -= dt
		if r.countdown <= 0 {
			r.countdown = 0
			r.lightsOut()
		}
		return
	}

	r.stepSafetyCar(dt)

	// Every intent is decided against the same state before any car moves.
	ctxs := r.contexts()
	intents := make([]car.Intent, len(r.cars))
	for i, c := range r.cars {
		if i == r.player {
			intents[i] = player
			continue
		}
		intents[i] = r.drivers[i].Decide(c.Clone(), r.track)
	}

	for i, c := range r.cars {
		before := c.Clone()
		c.Update(dt, intents[i], ctxs[i])
		r.pitEvents(&before, c)
	}
	r.clock += dt

	for i, c := range r.cars {
		r.checkLap(i, c)
	}

	r.rank()
	r.checkEnd()
}

func (r *Race) lightsOut() {
	r.state = core.StateRacing
	r.emit(core.RaceEvent{Kind: core.EventLightsOut, Message: "Lights out"})
	r.logger.Info("Lights out", "cars", len(r.cars))
}

func (r *Race) contexts() []car.Context {
	ctxs := make([]car.Context, len(r.cars))
	for i := range ctxs {
		ctxs[i] = car.Context{Track: r.track, SafetyCar: r.safetyCar.Active}
	}
	for i := 1; i < len(r.ranked); i++ {
		ahead, c := r.ranked[i-1], r.ranked[i]
		if ahead.Finished || ahead.InPit() {
			continue
		}
		ctxs[c.ID].HasCarAhead = true
		ctxs[c.ID].GapAhead = c.GapAhead
	}
	return ctxs
}

func (r *Race) stepSafetyCar(dt float64) {
	deployed, withdrawn := r.safetyCar.Step(dt, r.rng.Float64())
	switch {
	case deployed:
		r.emit(core.RaceEvent{
			Kind:      core.EventSafetyCarDeployed,
			Message:   "Safety car deployed",
			ExtraData: map[string]any{"duration": r.safetyCar.Duration},
		})
		r.logger.Info("Safety car deployed", "clock", r.clock)
	case withdrawn:
		r.emit(core.RaceEvent{Kind: core.EventSafetyCarIn, Message: "Safety car in this lap"})
		r.logger.Info("Safety car in", "clock", r.clock)
	}
}

func (r *Race) pitEvents(before, after *car.Car) {
	switch {
	case before.Pit.Phase == car.PitRacing && after.Pit.Phase != car.PitRacing:
		r.emit(core.RaceEvent{
			Kind:    core.EventPitEntry,
			CarID:   after.ID,
			Message: fmt.Sprintf("%s enters the pit lane", after.Name),
		})
	case before.Pit.Phase != car.PitRacing && after.Pit.Phase == car.PitRacing:
		stop := &core.PitStopEvent{
			CarID:       after.ID,
			Stop:        after.Pit.Stops,
			Lap:         after.Lap,
			OldCompound: before.Compound.String(),
			NewCompound: after.Compound.String(),
			Duration:    after.TotalTime - before.Pit.EnteredAt,
			RaceClock:   r.clock,
			Time:        r.now(),
		}
		r.emit(core.RaceEvent{
			Kind:    core.EventPitExit,
			CarID:   after.ID,
			Message: fmt.Sprintf("%s leaves the pits on %s tires", after.Name, stop.NewCompound),
			PitStop: stop,
		})
		r.logger.Debug("Pit stop complete", "car", after.ID, "stop", stop.Stop, "compound", stop.NewCompound)
	}
}

func (r *Race) checkLap(i int, c *car.Car) {
	if c.Finished {
		return
	}
	dist := c.Position.Dist(r.track.StartLine())
	if !r.gates[i].Observe(r.clock, dist, r.track.StartLineOffset(c.Position)) {
		return
	}
	completed := c.Lap
	lapTime, timed := c.CrossLine(r.clock)
	if timed {
		r.laps[i] = append(r.laps[i], lapTime)
		r.lapEvent(c, completed, lapTime)
	}
	if c.Lap > r.cfg.TotalLaps {
		c.Finish()
		f := core.Finish{Rank: len(r.order) + 1, CarID: c.ID, TotalTime: c.TotalTime}
		r.order = append(r.order, f)
		r.emit(core.RaceEvent{
			Kind:      core.EventFinish,
			CarID:     c.ID,
			Message:   fmt.Sprintf("%s finishes P%d", c.Name, f.Rank),
			ExtraData: map[string]any{"rank": f.Rank, "totalTime": f.TotalTime},
		})
		r.logger.Info("Car finished", "car", c.ID, "rank", f.Rank, "total_time", f.TotalTime)
	}
}

func (r *Race) lapEvent(c *car.Car, completed int, lapTime float64) {
	lap := &core.LapEvent{
		CarID:     c.ID,
		Lap:       completed,
		LapTime:   lapTime,
		RaceClock: r.clock,
		Personal:  c.BestLap != nil && *c.BestLap == lapTime,
		Time:      r.now(),
	}
	r.emit(core.RaceEvent{
		Kind:    core.EventLap,
		CarID:   c.ID,
		Message: fmt.Sprintf("%s lap %d: %.3fs", c.Name, completed, lapTime),
		Lap:     lap,
	})
	r.logger.Debug("Lap completed", "car", c.ID, "lap", completed, "lap_time", lapTime)

	if r.fastest == nil || lapTime < *r.fastest {
		v := lapTime
		r.fastest = &v
		r.emit(core.RaceEvent{
			Kind:      core.EventFastestLap,
			CarID:     c.ID,
			Message:   fmt.Sprintf("Fastest lap: %s %.3fs", c.Name, lapTime),
			ExtraData: map[string]any{"lap": completed, "lapTime": lapTime},
		})
	}
}

// rank recomputes the order from scratch and reports position swaps.
func (r *Race) rank() {
	prev := make(map[int]int, len(r.ranked))
	for i, c := range r.ranked {
		prev[c.ID] = i
	}
	r.ranked = leaderboard.Rank(r.cars, r.track.Length())
	r.applyRanking()

	for i := 0; i+1 < len(r.ranked); i++ {
		a, b := r.ranked[i], r.ranked[i+1]
		if prev[a.ID] <= prev[b.ID] || a.Finished || b.Finished || b.InPit() || a.Lap == 0 {
			continue
		}
		r.emit(core.RaceEvent{
			Kind:       core.EventOvertake,
			CarID:      a.ID,
			OtherCarID: b.ID,
			Message:    fmt.Sprintf("%s passes %s for P%d", a.Name, b.Name, a.Rank),
		})
	}
}

func (r *Race) applyRanking() {
	length := r.track.Length()
	for i, c := range r.ranked {
		c.Rank = i + 1
		c.GapAhead = 0
		if i > 0 {
			c.GapAhead = leaderboard.Gap(r.ranked[i-1], c, length)
		}
	}
}

func (r *Race) checkEnd() {
	all := true
	for _, c := range r.cars {
		if !c.Finished {
			all = false
			break
		}
	}
	if !all && (r.cfg.TimeLimit == 0 || r.clock < r.cfg.TimeLimit) {
		return
	}
	r.timedOut = !all
	r.state = core.StateFinished
	r.ended = r.now()
	msg := "All cars finished"
	if r.timedOut {
		msg = "Time limit reached"
	}
	r.emit(core.RaceEvent{
		Kind:      core.EventRaceEnd,
		Message:   msg,
		ExtraData: map[string]any{"completed": all, "clock": r.clock},
	})
	r.logger.Info("Race finished", "clock", r.clock, "completed", all, "finishers", len(r.order))
}

func (r *Race) emit(e core.RaceEvent) {
	if e.Kind != core.EventOvertake {
		e.OtherCarID = -1
	}
	switch e.Kind {
	case core.EventRaceStart, core.EventRaceEnd, core.EventLightsOut,
		core.EventSafetyCarDeployed, core.EventSafetyCarIn:
		e.CarID = -1
	}
	e.RaceClock = r.clock
	e.Time = r.now()
	r.events = append(r.events, e)
}

// Events returns and clears the events raised since the previous call.
func (r *Race) Events() []core.RaceEvent {
	out := r.events
	r.events = nil
	return out
}

func (r *Race) ID() uuid.UUID         { return r.id }
func (r *Race) State() string         { return r.state }
func (r *Race) Clock() float64        { return r.clock }
func (r *Race) Countdown() float64    { return r.countdown }
func (r *Race) Tick() uint64          { return r.tick }
func (r *Race) Track() *track.Track   { return r.track }
func (r *Race) Config() Config        { return r.cfg }
func (r *Race) SafetyCarActive() bool { return r.safetyCar.Active }

// PlayerID is the id of the player car, or -1.
func (r *Race) PlayerID() int { return r.player }

// Cars returns copies of every car in creation order.
func (r *Race) Cars() []car.Car {
	out := make([]car.Car, len(r.cars))
	for i, c := range r.cars {
		out[i] = c.Clone()
	}
	return out
}

// Car returns a copy of the car with the given id.
func (r *Race) Car(id int) (car.Car, bool) {
	if id < 0 || id >= len(r.cars) {
		return car.Car{}, false
	}
	return r.cars[id].Clone(), true
}

// Identities lists the static description of each car.
func (r *Race) Identities() []core.Car {
	out := make([]core.Car, len(r.cars))
	for i, c := range r.cars {
		id := c.Identity()
		id.GridSlot = i + 1
		id.JoinTime = r.started
		out[i] = id
	}
	return out
}

// FinishingOrder returns a copy of the order cars took the flag in.
func (r *Race) FinishingOrder() []core.Finish {
	out := make([]core.Finish, len(r.order))
	copy(out, r.order)
	return out
}

// LapTimes returns a copy of the timed laps of one car.
func (r *Race) LapTimes(id int) []float64 {
	if id < 0 || id >= len(r.laps) {
		return nil
	}
	out := make([]float64, len(r.laps[id]))
	copy(out, r.laps[id])
	return out
}

// Info describes the session for recorders.
func (r *Race) Info() core.Race {
	return core.Race{
		ID:        r.id,
		Circuit:   r.track.Name(),
		TotalLaps: r.cfg.TotalLaps,
		Seed:      int64(r.cfg.Seed),
		StartTime: r.started,
		CarCount:  len(r.cars),
		Version:   r.version,
	}
}

// Circuit is the drawable track, built once per call.
func (r *Race) Circuit() core.Circuit {
	return r.track.Circuit()
}

// Snapshot copies the race state for readers. Nothing in it aliases the race.
func (r *Race) Snapshot() core.Snapshot {
	now := r.now()
	states := make([]core.CarState, len(r.cars))
	for i, c := range r.cars {
		s := c.State()
		s.Time = now
		s.RaceClock = r.clock
		states[i] = s
	}
	return core.Snapshot{
		Tick:           r.tick,
		State:          r.state,
		Clock:          r.clock,
		Countdown:      r.countdown,
		TotalLaps:      r.cfg.TotalLaps,
		SafetyCar:      r.safetyCar.Active,
		Cars:           states,
		Standings:      leaderboard.Standings(r.ranked, r.track.Length()),
		FinishingOrder: r.FinishingOrder(),
	}
}

// Results summarises the race. It can be called at any time; Completed is set only once every
// car has finished.
func (r *Race) Results() core.RaceResult {
	stats := make(map[int]core.LapStats, len(r.cars))
	for i, laps := range r.laps {
		stats[i] = leaderboard.LapStats(laps)
	}
	end := r.ended
	if end.IsZero() {
		end = r.now()
	}
	return core.RaceResult{
		Race:           r.Info(),
		EndTime:        end,
		RaceClock:      r.clock,
		FinishingOrder: r.FinishingOrder(),
		LapStats:       stats,
		Completed:      r.state == core.StateFinished && !r.timedOut,
	}
}
