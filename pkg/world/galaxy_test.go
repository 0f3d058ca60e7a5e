package world_test

import (
	"encoding/json"
	"testing"

	"mapembed/pkg/reconcile"
	"mapembed/pkg/types"
	"mapembed/pkg/world"
)

var _ reconcile.WorldState = (*world.State)(nil)

const hostJSON = `{
  "scanning_data": {
    "playerUid": 1, "now": 1000, "tick": 10, "productionRate": 20,
    "players": {
      "1": {"uid": 1, "alias": "Me", "totalStars": 1, "totalFleets": 1, "totalStrength": 35},
      "2": {"uid": 2, "alias": "Them", "totalStars": 20, "totalFleets": 4, "totalStrength": 400, "totalEconomy": 90}
    },
    "stars": {
      "1": {"uid": 1, "n": "Home", "puid": 1, "v": "1", "x": "0", "y": "0", "st": 20},
      "2": {"uid": 2, "n": "Alpha", "puid": 2, "v": "0", "x": "3", "y": "4"}
    },
    "fleets": {
      "10": {"uid": 10, "puid": 1, "n": "Me I", "st": 15, "ouid": 1, "o": [[0, 2, 0, 0]]}
    }
  }
}`

const scanJSON = `{
  "scanning_data": {
    "now": 990,
    "stars": {
      "1": {"uid": 1, "n": "Home", "puid": 1, "v": "1", "st": 1},
      "2": {"uid": 2, "n": "Alpha", "puid": 2, "v": 1, "st": 8, "e": 4}
    },
    "fleets": {
      "20": {"uid": 20, "puid": 2, "n": "Them I", "st": 6, "ouid": 2, "o": [[0, 1, 0, 0], [0, 77, 0, 0]]}
    }
  }
}`

func decode(t *testing.T, raw string) *types.APIResponse {
	t.Helper()
	var resp types.APIResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return &resp
}

func TestLoadKeepsReportedTotals(t *testing.T) {
	g := world.NewGalaxy()
	g.Load(decode(t, hostJSON))

	if g.Now() != 1000 {
		t.Errorf("clock: got %d", g.Now())
	}

	g.View(func(s *world.State) {
		home, _ := s.Star(1)
		if home.TotalDefenses != 35 {
			t.Errorf("home defenses: got %d, want 35", home.TotalDefenses)
		}
		me, _ := s.Player(1)
		// Them holds no star or fleet we can see; the API totals still stand
		them, _ := s.Player(2)
		if them.TotalStars != 20 || them.TotalFleets != 4 || them.TotalStrength != 400 || them.TotalEconomy != 90 {
			t.Errorf("reported totals replaced: %+v", them)
		}
		fleet, _ := s.Fleet(10)
		if fleet.Player != me || len(fleet.Path) != 1 || fleet.Path[0].Name != "Alpha" {
			t.Errorf("fleet projections not resolved: %+v", fleet)
		}
	})
}

func TestMergePassThroughGalaxy(t *testing.T) {
	g := world.NewGalaxy()
	g.Load(decode(t, hostJSON))

	pass := func() *reconcile.Result {
		var result *reconcile.Result
		err := g.Update(func(s *world.State) error {
			var err error
			result, err = reconcile.Apply(s, decode(t, scanJSON), nil)
			return err
		})
		if err != nil {
			t.Fatalf("pass: %v", err)
		}
		return result
	}

	first := pass()
	if len(first.Stars) != 1 || len(first.Fleets) != 1 {
		t.Fatalf("first pass: %+v", first)
	}
	if second := pass(); !second.Empty() {
		t.Errorf("second pass merged again: %+v", second)
	}

	g.View(func(s *world.State) {
		home, _ := s.Star(1)
		if home.Strength != 20 || home.Name != "Home" {
			t.Errorf("visible star overwritten: %+v", home)
		}

		alpha, _ := s.Star(2)
		if alpha.Name != "[Alpha]" || alpha.StrengthLabel != "[8]" || alpha.Economy != 4 {
			t.Errorf("alpha: %+v", alpha)
		}
		// 8 garrison plus the scanned carrier in orbit
		if alpha.TotalDefenses != 14 {
			t.Errorf("alpha defenses: got %d, want 14", alpha.TotalDefenses)
		}

		them, _ := s.Player(2)
		if them.TotalStars != 20 || them.TotalFleets != 4 || them.TotalStrength != 400 {
			t.Errorf("merge changed reported totals: %+v", them)
		}

		out := s.Export()
		if len(out.Fleets) != 2 {
			t.Fatalf("export fleets: %d", len(out.Fleets))
		}
		scanned := out.Fleets[1]
		if scanned.Name != "[Them I]" || len(scanned.PathIDs) != 2 {
			t.Fatalf("scanned fleet export: %+v", scanned)
		}
		if scanned.PathIDs[0] == nil || *scanned.PathIDs[0] != 1 || scanned.PathIDs[1] != nil {
			t.Errorf("path ids: %v", scanned.PathIDs)
		}
	})
}

func TestLoadDropsMergedIntel(t *testing.T) {
	g := world.NewGalaxy()
	g.Load(decode(t, hostJSON))
	_ = g.Update(func(s *world.State) error {
		_, err := reconcile.Apply(s, decode(t, scanJSON), nil)
		return err
	})

	g.Load(decode(t, hostJSON))

	g.View(func(s *world.State) {
		if _, ok := s.Fleet(20); ok {
			t.Errorf("reload should drop scanned fleets")
		}
		alpha, _ := s.Star(2)
		if bool(alpha.Visible) || alpha.Name != "Alpha" {
			t.Errorf("reload should reset scanned stars: %+v", alpha)
		}
	})
}
