// Package world holds the locally authoritative galaxy: what the player's own
// game client knows, plus whatever has been merged into it since the last load.
package world

import (
	"cmp"
	"slices"
	"sync"

	"mapembed/pkg/types"
)

// State is the unlocked galaxy graph. It is only handed out inside
// Galaxy.Update and Galaxy.View.
type State struct {
	now            int64
	tick           int
	playerUID      int
	productionRate int
	paused         bool

	stars   map[int]*types.Star
	fleets  map[int]*types.Fleet
	players map[int]*types.Player
}

func newState() *State {
	return &State{
		stars:   make(map[int]*types.Star),
		fleets:  make(map[int]*types.Fleet),
		players: make(map[int]*types.Player),
	}
}

func (s *State) Now() int64          { return s.now }
func (s *State) Tick() int           { return s.tick }
func (s *State) PlayerUID() int      { return s.playerUID }
func (s *State) ProductionRate() int { return s.productionRate }

func (s *State) Star(uid int) (*types.Star, bool) {
	star, ok := s.stars[uid]
	return star, ok
}

func (s *State) Fleet(uid int) (*types.Fleet, bool) {
	fleet, ok := s.fleets[uid]
	return fleet, ok
}

func (s *State) Player(uid int) (*types.Player, bool) {
	player, ok := s.players[uid]
	return player, ok
}

func (s *State) AddFleet(fleet *types.Fleet) {
	s.fleets[fleet.UID] = fleet
}

// Stars returns every star ordered by uid.
func (s *State) Stars() []*types.Star {
	return sortedValues(s.stars, func(star *types.Star) int { return star.UID })
}

func (s *State) Fleets() []*types.Fleet {
	return sortedValues(s.fleets, func(fleet *types.Fleet) int { return fleet.UID })
}

func (s *State) Players() []*types.Player {
	return sortedValues(s.players, func(player *types.Player) int { return player.UID })
}

// Recompute rebuilds the values derived from raw entity fields: fleet owners
// and paths, and the defenses of visible stars. Player totals come from the
// game API, which counts the whole galaxy, and are left as reported.
func (s *State) Recompute() {
	orbiting := make(map[int]int)
	for _, fleet := range s.fleets {
		fleet.Player = s.players[fleet.PlayerID]
		fleet.Path = fleet.Path[:0]
		for _, order := range fleet.Orders {
			var star *types.Star
			if target, ok := types.OrderTarget(order); ok {
				star = s.stars[target]
			}
			fleet.Path = append(fleet.Path, star)
		}
		if fleet.CurrentStar > 0 {
			orbiting[fleet.CurrentStar] += fleet.Strength
		}
	}

	for uid, star := range s.stars {
		if !star.Visible {
			continue
		}
		star.TotalDefenses = star.Strength + orbiting[uid]
	}
}

func sortedValues[T any](m map[int]T, uid func(T) int) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(uid(a), uid(b)) })
	return out
}

// --- Locked Holder ---

// Galaxy guards a State. One writer at a time: host reloads and merge
// passes both go through Update.
type Galaxy struct {
	mu    sync.RWMutex
	state *State
}

func NewGalaxy() *Galaxy {
	return &Galaxy{state: newState()}
}

// Load replaces the whole graph with the host's own view, the way the game
// client swaps its universe on a full reload. Anything merged earlier is gone
// afterwards. Load takes ownership of resp.
func (g *Galaxy) Load(resp *types.APIResponse) {
	next := newState()
	data := &resp.ScanningData
	next.now = data.Now
	next.tick = data.Tick
	next.playerUID = data.PlayerUID
	next.productionRate = data.ProductionRate
	next.paused = data.Paused

	for key, star := range data.Stars {
		if uid, ok := types.ParseUID(key); ok && star != nil {
			star.UID = uid
			next.stars[uid] = star
		}
	}
	for key, fleet := range data.Fleets {
		if uid, ok := types.ParseUID(key); ok && fleet != nil {
			fleet.UID = uid
			next.fleets[uid] = fleet
		}
	}
	for key, player := range data.Players {
		if uid, ok := types.ParseUID(key); ok && player != nil {
			player.UID = uid
			next.players[uid] = player
		}
	}
	next.Recompute()

	g.mu.Lock()
	g.state = next
	g.mu.Unlock()
}

func (g *Galaxy) Update(fn func(*State) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.state)
}

func (g *Galaxy) View(fn func(*State)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.state)
}

// Now is the host's simulated clock.
func (g *Galaxy) Now() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.now
}

// --- Export ---

type FleetView struct {
	*types.Fleet
	PathIDs []*int `json:"path"`
}

// Export is what map viewers receive. Unresolved waypoints are null.
type Export struct {
	Now       int64           `json:"now"`
	Tick      int             `json:"tick"`
	Paused    bool            `json:"paused"`
	PlayerUID int             `json:"playerUid"`
	Stars     []*types.Star   `json:"stars"`
	Fleets    []FleetView     `json:"fleets"`
	Players   []*types.Player `json:"players"`
}

// Export copies the graph so it can be encoded after the lock is released.
func (s *State) Export() Export {
	out := Export{
		Now:       s.now,
		Tick:      s.tick,
		Paused:    s.paused,
		PlayerUID: s.playerUID,
	}
	for _, star := range s.Stars() {
		c := *star
		out.Stars = append(out.Stars, &c)
	}
	for _, fleet := range s.Fleets() {
		c := *fleet
		view := FleetView{Fleet: &c}
		for _, star := range fleet.Path {
			if star == nil {
				view.PathIDs = append(view.PathIDs, nil)
				continue
			}
			uid := star.UID
			view.PathIDs = append(view.PathIDs, &uid)
		}
		out.Fleets = append(out.Fleets, view)
	}
	for _, player := range s.Players() {
		c := *player
		out.Players = append(out.Players, &c)
	}
	return out
}
