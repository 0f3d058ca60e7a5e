package game

import (
	"errors"
	"math"
)

var (
	ErrNegativeInput  = errors.New("battle inputs must not be negative")
	ErrInputTooLarge  = errors.New("battle inputs must not exceed MaxBattleInput")
	ErrImpossibleDraw = errors.New("encountered draw but this should be impossible")
)

// MaxBattleInput bounds every input so tick counts and ship losses stay
// well inside int.
const MaxBattleInput = math.MaxInt32

// Battle is the predicted outcome of a fleet attacking a star.
type Battle struct {
	AttackerWins bool `json:"attacker_wins"`
	DefenderWins bool `json:"defender_wins"`

	AttackerShipsRemaining int `json:"attacker_ships_remaining"`
	DefenderShipsRemaining int `json:"defender_ships_remaining"`

	DefenderWeaponsWithBonus int `json:"defender_weapons_with_bonus"`
	LowestTicks              int `json:"lowest_ticks"`
	DefenderShipsNeeded      int `json:"defender_ships_needed"`
}

// GuessBattle resolves an attack in closed form. Each tick the defenders
// destroy (weapons+1) attackers and the attackers destroy weapons defenders;
// the fight ends on the first tick one side runs out. Defenders win ties.
func GuessBattle(attackerShips, attackerWeapons, defenderShips, defenderWeapons int) (Battle, error) {
	if attackerShips < 0 || attackerWeapons < 0 || defenderShips < 0 || defenderWeapons < 0 {
		return Battle{}, ErrNegativeInput
	}
	if attackerShips > MaxBattleInput || attackerWeapons > MaxBattleInput ||
		defenderShips > MaxBattleInput || defenderWeapons > MaxBattleInput {
		return Battle{}, ErrInputTooLarge
	}

	defenderWeaponsWithBonus := defenderWeapons + 1

	ticksToKillAttacker := float64(attackerShips) / float64(defenderWeaponsWithBonus)
	ticksToKillDefender := 0.0
	if defenderShips > 0 {
		// +Inf when the attacker has no weapons at all
		ticksToKillDefender = float64(defenderShips) / float64(attackerWeapons)
	}

	lowestTicks := int(math.Ceil(math.Min(ticksToKillAttacker, ticksToKillDefender)))

	attackerShipsRemaining := max(0, attackerShips-lowestTicks*defenderWeaponsWithBonus)
	defenderShipsRemaining := max(0, defenderShips-lowestTicks*attackerWeapons)

	if attackerShipsRemaining == 0 && defenderShipsRemaining == 0 {
		defenderShipsRemaining += attackerWeapons
	}

	attackerWins := attackerShipsRemaining > 0
	defenderWins := defenderShipsRemaining > 0
	if attackerWins == defenderWins {
		return Battle{}, ErrImpossibleDraw
	}

	// rounding down is a best guess
	defenderShipsNeeded := int(math.Floor(math.Max(0, ticksToKillAttacker*float64(attackerWeapons)-float64(defenderShips))))

	return Battle{
		AttackerWins:             attackerWins,
		DefenderWins:             defenderWins,
		AttackerShipsRemaining:   attackerShipsRemaining,
		DefenderShipsRemaining:   defenderShipsRemaining,
		DefenderWeaponsWithBonus: defenderWeaponsWithBonus,
		LowestTicks:              lowestTicks,
		DefenderShipsNeeded:      defenderShipsNeeded,
	}, nil
}
