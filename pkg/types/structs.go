package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// --- Wire Scalars ---

// Flag is the game's visibility marker. The API mixes 1, "1" and "0".
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "1", "true":
		*f = true
	case "0", "false", "null", "":
		*f = false
	default:
		return fmt.Errorf("invalid flag %s", data)
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"1"`), nil
	}
	return []byte(`"0"`), nil
}

// Flex is a number that may arrive quoted (coordinates do).
type Flex float64

func (n *Flex) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*n = Flex(v)
	return nil
}

// ParseUID converts a map key of the scanning data into an entity id.
func ParseUID(key string) (int, bool) {
	uid, err := strconv.Atoi(key)
	if err != nil {
		return 0, false
	}
	return uid, true
}

// --- Stars ---

type PublicStar struct {
	UID      int    `json:"uid"`
	Name     string `json:"n"`
	PlayerID int    `json:"puid"` // -1 when unowned
	Visible  Flag   `json:"v"`
	X        Flex   `json:"x"`
	Y        Flex   `json:"y"`
}

// PrivateStar is only populated for stars inside someone's scanning range.
type PrivateStar struct {
	Strength         int             `json:"st"`
	Economy          int             `json:"e"`
	Industry         int             `json:"i"`
	Science          int             `json:"s"`
	Extra            json.RawMessage `json:"c,omitempty"`
	NaturalResources int             `json:"nr"`
	Resources        int             `json:"r"`
	WarpGate         int             `json:"ga"`
}

type Star struct {
	PublicStar
	PrivateStar

	TotalDefenses int    `json:"totalDefenses"`
	StrengthLabel string `json:"stl,omitempty"`
}

// StrengthText is what a map shows as the garrison.
func (s *Star) StrengthText() string {
	if s.StrengthLabel != "" {
		return s.StrengthLabel
	}
	return strconv.Itoa(s.Strength)
}

// --- Fleets ---

type Fleet struct {
	UID         int     `json:"uid"`
	PlayerID    int     `json:"puid"`
	Name        string  `json:"n"`
	X           Flex    `json:"x"`
	Y           Flex    `json:"y"`
	LastX       Flex    `json:"lx"`
	LastY       Flex    `json:"ly"`
	Strength    int     `json:"st"`
	CurrentStar int     `json:"ouid"`
	Orders      [][]int `json:"o"` // [delay, starUID, action, ships]

	OrderAlias    [][]int `json:"orders,omitempty"`
	StrengthLabel string  `json:"stl,omitempty"`

	// Projections resolved against the galaxy that holds the fleet.
	Player *Player `json:"-"`
	Path   []*Star `json:"-"`
}

func (f *Fleet) StrengthText() string {
	if f.StrengthLabel != "" {
		return f.StrengthLabel
	}
	return strconv.Itoa(f.Strength)
}

// OrderTarget returns the destination star of a waypoint order.
func OrderTarget(order []int) (int, bool) {
	if len(order) < 2 {
		return 0, false
	}
	return order[1], true
}

// --- Players ---

type TechResearchStatus struct {
	Level int     `json:"level"`
	Value float64 `json:"value"`
}

type Player struct {
	UID           int                           `json:"uid"`
	Alias         string                        `json:"alias"`
	TotalStars    int                           `json:"totalStars"`
	TotalFleets   int                           `json:"totalFleets"`
	TotalStrength int                           `json:"totalStrength"`
	TotalEconomy  int                           `json:"totalEconomy"`
	TotalIndustry int                           `json:"totalIndustry"`
	TotalScience  int                           `json:"totalScience"`
	Conceded      int                           `json:"conceded"`
	Tech          map[string]TechResearchStatus `json:"tech"`
}

// Older games key tech by name, newer ones by kind index.
var techKeys = map[string]string{
	"banking":         "0",
	"experimentation": "1",
	"manufacturing":   "2",
	"range":           "3",
	"scanning":        "4",
	"weapons":         "5",
	"terraforming":    "6",
}

// TechLevel looks a tech up by name, falling back to its kind index.
func (p *Player) TechLevel(name string) (int, bool) {
	if t, ok := p.Tech[name]; ok {
		return t.Level, true
	}
	if t, ok := p.Tech[techKeys[name]]; ok {
		return t.Level, true
	}
	return 0, false
}

// --- Scanning Data ---

// ScanningData is one player's view of the galaxy. Entities may be null.
type ScanningData struct {
	PlayerUID         int                `json:"playerUid"`
	Now               int64              `json:"now"`
	TickFragment      float64            `json:"tickFragment"`
	Paused            bool               `json:"paused"`
	Started           bool               `json:"started"`
	GameOver          bool               `json:"gameOver"`
	Productions       int                `json:"productions"`
	ProductionRate    int                `json:"productionRate"`
	ProductionCounter int                `json:"productionCounter"`
	Tick              int                `json:"tick"`
	Name              string             `json:"name"`
	TotalStars        int                `json:"totalStars"`
	TickRate          int                `json:"tickRate"`
	FleetSpeed        float64            `json:"fleetSpeed"`
	Players           map[string]*Player `json:"players"`
	Stars             map[string]*Star   `json:"stars"`
	Fleets            map[string]*Fleet  `json:"fleets"`
}

type APIResponse struct {
	Error        string       `json:"error,omitempty"`
	ScanningData ScanningData `json:"scanning_data"`
}
