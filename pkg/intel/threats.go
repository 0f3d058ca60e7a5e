// Package intel turns fleet orders into attack forecasts.
package intel

import (
	"cmp"
	"errors"
	"slices"

	"mapembed/pkg/game"
	"mapembed/pkg/types"
	"mapembed/pkg/world"
)

// ErrUnknownDefenses marks a threat on a star whose garrison nobody scans.
var ErrUnknownDefenses = errors.New("defender strength unknown")

// Threat is one fleet order that ends on a star held by another player.
type Threat struct {
	FleetUID    int    `json:"fleet_uid"`
	FleetName   string `json:"fleet_name"`
	Ships       int    `json:"ships"`
	OrderIndex  int    `json:"order_index"`
	AttackerUID int    `json:"attacker_uid"`
	StarUID     int    `json:"star_uid"`
	StarName    string `json:"star_name"`
	DefenderUID int    `json:"defender_uid"`

	AttackerAlias string `json:"attacker_alias"`
	DefenderAlias string `json:"defender_alias"`

	Battle *game.Battle `json:"battle,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// FindThreats walks every fleet's orders. weaponsGuess stands in for any
// player whose weapons level is not in the data.
func FindThreats(s *world.State, weaponsGuess int) []Threat {
	threats := []Threat{}
	for _, fleet := range s.Fleets() {
		attacker, ok := s.Player(fleet.PlayerID)
		if !ok {
			continue
		}

		for i, order := range fleet.Orders {
			target, ok := types.OrderTarget(order)
			if !ok {
				continue
			}
			star, ok := s.Star(target)
			if !ok || star.PlayerID == -1 || star.PlayerID == fleet.PlayerID {
				continue
			}
			defender, ok := s.Player(star.PlayerID)
			if !ok {
				continue
			}

			threat := Threat{
				FleetUID:    fleet.UID,
				FleetName:   fleet.Name,
				Ships:       fleet.Strength,
				OrderIndex:  i,
				AttackerUID: attacker.UID,
				StarUID:     star.UID,
				StarName:    star.Name,
				DefenderUID: defender.UID,

				AttackerAlias: attacker.Alias,
				DefenderAlias: defender.Alias,
			}
			if !star.Visible {
				threat.Error = ErrUnknownDefenses.Error()
				threats = append(threats, threat)
				continue
			}
			battle, err := game.GuessBattle(
				fleet.Strength, weapons(attacker, weaponsGuess),
				star.Strength, weapons(defender, weaponsGuess),
			)
			if err != nil {
				threat.Error = err.Error()
			} else {
				threat.Battle = &battle
			}
			threats = append(threats, threat)
		}
	}

	slices.SortStableFunc(threats, func(a, b Threat) int {
		if c := cmp.Compare(a.FleetUID, b.FleetUID); c != 0 {
			return c
		}
		return cmp.Compare(a.OrderIndex, b.OrderIndex)
	})
	return threats
}

func weapons(p *types.Player, guess int) int {
	if level, ok := p.TechLevel("weapons"); ok {
		return level
	}
	return guess
}
