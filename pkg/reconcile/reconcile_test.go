package reconcile

import (
	"errors"
	"reflect"
	"testing"

	"mapembed/pkg/types"
)

// --- Fakes ---

type fakeWorld struct {
	stars   map[int]*types.Star
	fleets  map[int]*types.Fleet
	players map[int]*types.Player

	calls            *[]string
	namesAtRecompute []string
}

func newFakeWorld(calls *[]string) *fakeWorld {
	return &fakeWorld{
		stars:   map[int]*types.Star{},
		fleets:  map[int]*types.Fleet{},
		players: map[int]*types.Player{},
		calls:   calls,
	}
}

func (w *fakeWorld) Star(uid int) (*types.Star, bool) {
	s, ok := w.stars[uid]
	return s, ok
}

func (w *fakeWorld) Fleet(uid int) (*types.Fleet, bool) {
	f, ok := w.fleets[uid]
	return f, ok
}

func (w *fakeWorld) Player(uid int) (*types.Player, bool) {
	p, ok := w.players[uid]
	return p, ok
}

func (w *fakeWorld) AddFleet(f *types.Fleet) { w.fleets[f.UID] = f }

func (w *fakeWorld) Recompute() {
	*w.calls = append(*w.calls, "recompute")
	for _, s := range w.stars {
		w.namesAtRecompute = append(w.namesAtRecompute, s.Name)
	}
}

type fakeRenderer struct{ calls *[]string }

func (r fakeRenderer) CreateSpritesStars()  { *r.calls = append(*r.calls, "stars") }
func (r fakeRenderer) CreateSpritesFleets() { *r.calls = append(*r.calls, "fleets") }
func (r fakeRenderer) Draw()                { *r.calls = append(*r.calls, "draw") }

func star(uid int, name string, visible bool, strength int) *types.Star {
	return &types.Star{
		PublicStar:  types.PublicStar{UID: uid, Name: name, PlayerID: -1, Visible: types.Flag(visible)},
		PrivateStar: types.PrivateStar{Strength: strength},
	}
}

// host: Alpha hidden, Home visible, Beta hidden. Zed owns fleet 1.
func fixture() (*fakeWorld, *[]string) {
	calls := &[]string{}
	w := newFakeWorld(calls)
	w.stars[1] = star(1, "Alpha", false, 0)
	w.stars[2] = star(2, "Home", true, 5)
	w.stars[3] = star(3, "Beta", false, 0)
	w.players[7] = &types.Player{UID: 7, Alias: "Zed"}
	w.fleets[1] = &types.Fleet{UID: 1, PlayerID: 7, Name: "Mine", Strength: 10}
	return w, calls
}

func snapshot() *types.APIResponse {
	alpha := star(1, "Alpha", true, 12)
	alpha.Economy, alpha.Industry, alpha.Science = 3, 2, 1
	alpha.NaturalResources, alpha.Resources, alpha.WarpGate = 40, 45, 1
	alpha.Extra = []byte("0.5")

	return &types.APIResponse{ScanningData: types.ScanningData{
		Stars: map[string]*types.Star{
			"1":   alpha,
			"2":   star(2, "Home", true, 99),
			"3":   star(3, "Beta", false, 0),
			"4":   star(4, "Ghost", true, 8),
			"5":   nil,
			"x-1": star(1, "Junk", true, 1),
		},
		Fleets: map[string]*types.Fleet{
			"1": {UID: 1, PlayerID: 7, Name: "Impostor", Strength: 999},
			"2": {UID: 2, PlayerID: 7, Name: "Zed I", Strength: 30, Orders: [][]int{{0, 1, 0, 0}, {0, 42, 0, 0}, {0}}},
			"3": nil,
		},
	}}
}

// --- Tests ---

func TestApplyIntroducesHiddenStar(t *testing.T) {
	w, calls := fixture()

	result, err := Apply(w, snapshot(), fakeRenderer{calls})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if !reflect.DeepEqual(result.Stars, []int{1}) {
		t.Errorf("merged stars: got %v, want [1]", result.Stars)
	}

	alpha := w.stars[1]
	if !alpha.Visible {
		t.Errorf("alpha should now be visible")
	}
	want := types.PrivateStar{Strength: 12, Economy: 3, Industry: 2, Science: 1, NaturalResources: 40, Resources: 45, WarpGate: 1, Extra: []byte("0.5")}
	if !reflect.DeepEqual(alpha.PrivateStar, want) {
		t.Errorf("private fields: got %+v, want %+v", alpha.PrivateStar, want)
	}
	if alpha.TotalDefenses != 12 {
		t.Errorf("total defenses: got %d, want 12", alpha.TotalDefenses)
	}
	if alpha.Name != "[Alpha]" || alpha.StrengthLabel != "[12]" {
		t.Errorf("annotation: got %q / %q", alpha.Name, alpha.StrengthLabel)
	}
}

func TestApplyNeverTouchesVisibleStars(t *testing.T) {
	w, calls := fixture()
	before := *w.stars[2]

	if _, err := Apply(w, snapshot(), fakeRenderer{calls}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(*w.stars[2], before) {
		t.Errorf("visible star changed: %+v", *w.stars[2])
	}
}

func TestApplySkipsInvisibleAndUnknownStars(t *testing.T) {
	w, calls := fixture()

	if _, err := Apply(w, snapshot(), fakeRenderer{calls}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if bool(w.stars[3].Visible) || w.stars[3].Name != "Beta" {
		t.Errorf("beta should be untouched: %+v", w.stars[3])
	}
	if _, ok := w.stars[4]; ok {
		t.Errorf("stars unknown to the host must not be created")
	}
}

func TestApplyIntroducesFleetsAdditively(t *testing.T) {
	w, calls := fixture()
	mine := w.fleets[1]

	result, err := Apply(w, snapshot(), fakeRenderer{calls})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if w.fleets[1] != mine || mine.Name != "Mine" || mine.Strength != 10 {
		t.Errorf("existing fleet replaced or changed: %+v", w.fleets[1])
	}
	if !reflect.DeepEqual(result.Fleets, []int{2}) {
		t.Fatalf("merged fleets: got %v, want [2]", result.Fleets)
	}

	zed := w.fleets[2]
	if zed.Player == nil || zed.Player.Alias != "Zed" {
		t.Errorf("owner not resolved: %+v", zed.Player)
	}
	if !reflect.DeepEqual(zed.OrderAlias, zed.Orders) {
		t.Errorf("order alias: got %v", zed.OrderAlias)
	}
	if len(zed.Path) != 3 {
		t.Fatalf("path length: got %d, want 3", len(zed.Path))
	}
	if zed.Path[0] != w.stars[1] {
		t.Errorf("first waypoint should be alpha")
	}
	if zed.Path[1] != nil || zed.Path[2] != nil {
		t.Errorf("unresolved waypoints should be nil: %v", zed.Path)
	}
	if zed.Name != "[Zed I]" || zed.StrengthLabel != "[30]" || zed.Strength != 30 {
		t.Errorf("fleet annotation: %q / %q / %d", zed.Name, zed.StrengthLabel, zed.Strength)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	w, calls := fixture()
	snap := snapshot()

	if _, err := Apply(w, snap, fakeRenderer{calls}); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	alpha := *w.stars[1]
	zed := *w.fleets[2]

	result, err := Apply(w, snapshot(), fakeRenderer{calls})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !result.Empty() {
		t.Errorf("second pass merged again: %+v", result)
	}
	if w.stars[1].Name != "[Alpha]" || w.stars[1].StrengthLabel != "[12]" {
		t.Errorf("annotation compounded: %q / %q", w.stars[1].Name, w.stars[1].StrengthLabel)
	}
	if !reflect.DeepEqual(*w.stars[1], alpha) {
		t.Errorf("star mutated by second pass")
	}
	if w.fleets[2].Name != zed.Name || w.fleets[2].StrengthLabel != zed.StrengthLabel {
		t.Errorf("fleet mutated by second pass: %+v", w.fleets[2])
	}
}

func TestApplyAnnotatesAfterRecompute(t *testing.T) {
	w, calls := fixture()

	if _, err := Apply(w, snapshot(), fakeRenderer{calls}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	want := []string{"recompute", "stars", "fleets", "draw"}
	if !reflect.DeepEqual(*calls, want) {
		t.Errorf("call order: got %v, want %v", *calls, want)
	}
	for _, name := range w.namesAtRecompute {
		if name[0] == '[' {
			t.Errorf("recompute saw annotated name %q", name)
		}
	}
}

func TestApplyFailsWholePass(t *testing.T) {
	w, calls := fixture()

	_, err := Apply(w, nil, fakeRenderer{calls})
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}

	_, err = Apply(w, &types.APIResponse{Error: "bad code"}, fakeRenderer{calls})
	var snapErr *SnapshotError
	if !errors.As(err, &snapErr) || snapErr.Message != "bad code" {
		t.Errorf("expected SnapshotError, got %v", err)
	}

	if len(*calls) != 0 {
		t.Errorf("failed passes must not recompute or redraw: %v", *calls)
	}
}

func TestMergeClonesOrders(t *testing.T) {
	w, _ := fixture()
	snap := snapshot()

	if _, err := Merge(w, snap); err != nil {
		t.Fatalf("merge: %v", err)
	}
	snap.ScanningData.Fleets["2"].Orders[0][1] = 3

	if got := w.fleets[2].Orders[0][1]; got != 1 {
		t.Errorf("merged fleet shares orders with snapshot, got target %d", got)
	}
}

func TestApplyAllowsNilRenderer(t *testing.T) {
	w, _ := fixture()
	if _, err := Apply(w, snapshot(), nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
}
