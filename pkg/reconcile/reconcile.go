// Package reconcile merges a scanner snapshot into a live galaxy.
//
// The client's own knowledge always wins: stars it can already see and
// fleets it already tracks are never touched. Whatever is introduced gets
// bracketed ("[Alpha]", "[12]") after the host has recomputed its derived
// values, so a viewer can tell scanned intel from first-hand data. Because
// the brackets are written into the same fields a later pass would read, only
// entities merged by the current pass are ever annotated.
package reconcile

import (
	"cmp"
	"errors"
	"slices"

	"mapembed/pkg/types"
)

var ErrNoSnapshot = errors.New("no snapshot to merge")

// SnapshotError carries the error string reported inside the document.
type SnapshotError struct {
	Message string
}

func (e *SnapshotError) Error() string {
	return "snapshot reported error: " + e.Message
}

// WorldState is the host graph a pass reads from and writes into.
// Implementations are not expected to lock; callers hold the host's write
// lock for the duration of a pass.
type WorldState interface {
	Star(uid int) (*types.Star, bool)
	Fleet(uid int) (*types.Fleet, bool)
	Player(uid int) (*types.Player, bool)
	AddFleet(fleet *types.Fleet)

	// Recompute is the host's own whole-graph recalculation.
	Recompute()
}

// Renderer rebuilds the map after a pass.
type Renderer interface {
	CreateSpritesStars()
	CreateSpritesFleets()
	Draw()
}

// Result lists what a single pass introduced.
type Result struct {
	Stars  []int
	Fleets []int
}

func (r *Result) Empty() bool {
	return r == nil || (len(r.Stars) == 0 && len(r.Fleets) == 0)
}

// Apply runs one full pass: merge, host recompute, annotate, redraw.
// renderer may be nil.
func Apply(world WorldState, resp *types.APIResponse, renderer Renderer) (*Result, error) {
	result, err := Merge(world, resp)
	if err != nil {
		return nil, err
	}

	world.Recompute()
	Annotate(world, result)

	if renderer != nil {
		renderer.CreateSpritesStars()
		renderer.CreateSpritesFleets()
		renderer.Draw()
	}
	return result, nil
}

// Merge copies snapshot intel into world without recomputing or annotating.
func Merge(world WorldState, resp *types.APIResponse) (*Result, error) {
	if resp == nil {
		return nil, ErrNoSnapshot
	}
	if resp.Error != "" {
		return nil, &SnapshotError{Message: resp.Error}
	}

	data := &resp.ScanningData
	result := &Result{}

	for _, e := range keysOf(data.Stars) {
		star, ok := world.Star(e.uid)
		if !ok || bool(star.Visible) {
			// unknown to the host, or already visible normally
			continue
		}

		remote := data.Stars[e.key]
		if remote == nil || !bool(remote.Visible) {
			continue
		}

		star.PrivateStar = remote.PrivateStar
		star.Visible = remote.Visible
		// host recompute adds orbiting carriers on top
		star.TotalDefenses = star.Strength
		result.Stars = append(result.Stars, e.uid)
	}

	for _, e := range keysOf(data.Fleets) {
		if _, ok := world.Fleet(e.uid); ok {
			continue
		}

		remote := data.Fleets[e.key]
		if remote == nil {
			continue
		}

		fleet := *remote
		fleet.UID = e.uid
		fleet.Orders = cloneOrders(remote.Orders)
		fleet.OrderAlias = fleet.Orders
		fleet.Player, _ = world.Player(fleet.PlayerID)
		fleet.Path = projectPath(world, fleet.Orders)
		fleet.StrengthLabel = ""

		world.AddFleet(&fleet)
		result.Fleets = append(result.Fleets, e.uid)
	}

	return result, nil
}

// Annotate brackets the names and strengths of entities merged by result.
func Annotate(world WorldState, result *Result) {
	if result == nil {
		return
	}

	for _, uid := range result.Stars {
		star, ok := world.Star(uid)
		if !ok {
			continue
		}
		star.Name = bracket(star.Name)
		star.StrengthLabel = bracket(star.StrengthText())
	}

	for _, uid := range result.Fleets {
		fleet, ok := world.Fleet(uid)
		if !ok {
			continue
		}
		fleet.Name = bracket(fleet.Name)
		fleet.StrengthLabel = bracket(fleet.StrengthText())
	}
}

func bracket(s string) string {
	return "[" + s + "]"
}

// projectPath resolves each order's destination. Unknown destinations stay
// in the path as nil so indexes line up with the orders.
func projectPath(world WorldState, orders [][]int) []*types.Star {
	path := make([]*types.Star, 0, len(orders))
	for _, order := range orders {
		var star *types.Star
		if target, ok := types.OrderTarget(order); ok {
			star, _ = world.Star(target)
		}
		path = append(path, star)
	}
	return path
}

func cloneOrders(orders [][]int) [][]int {
	if orders == nil {
		return nil
	}
	out := make([][]int, len(orders))
	for i, order := range orders {
		out[i] = slices.Clone(order)
	}
	return out
}

type keyed struct {
	uid int
	key string
}

// keysOf returns the integer keys of a scanning data map in ascending order,
// dropping keys that are not ids.
func keysOf[T any](m map[string]T) []keyed {
	out := make([]keyed, 0, len(m))
	for key := range m {
		if uid, ok := types.ParseUID(key); ok {
			out = append(out, keyed{uid: uid, key: key})
		}
	}
	slices.SortFunc(out, func(a, b keyed) int { return cmp.Compare(a.uid, b.uid) })
	return out
}
