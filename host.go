package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mapembed/pkg/intel"
	"mapembed/pkg/notify"
	"mapembed/pkg/reconcile"
	"mapembed/pkg/source"
	"mapembed/pkg/store"
	"mapembed/pkg/types"
	"mapembed/pkg/world"
)

// --- Host Feed ---

// reloadHost swaps in the player's own view of the galaxy. Everything merged
// before is dropped; the clock moves, so the refresh loop merges again.
func reloadHost(ctx context.Context, client *source.GameClient, request *source.Request) error {
	resp, err := client.State(ctx, request)
	if err != nil {
		return fmt.Errorf("load host galaxy: %w", err)
	}
	galaxy.Load(resp)
	if hub != nil {
		hub.Draw()
	}
	InfoLog.Printf("Host galaxy loaded: tick %d, now %d, %d stars, %d fleets",
		resp.ScanningData.Tick, resp.ScanningData.Now, len(resp.ScanningData.Stars), len(resp.ScanningData.Fleets))
	return nil
}

func runHostFeed(ctx context.Context, client *source.GameClient, request *source.Request, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reloadHost(ctx, client, request); err != nil {
				ErrorLog.Printf("Host reload failed: %v", err)
			}
		}
	}
}

// --- Merge Pass ---

type merger struct {
	client  *source.ScannerClient
	request *source.Request

	// threats already logged, keyed by fleet/order/star
	seen map[string]bool

	// optional; nil keeps threats in the log only
	notifier *notify.Notifier
}

func newMerger(client *source.ScannerClient, request *source.Request) *merger {
	return &merger{client: client, request: request, seen: make(map[string]bool)}
}

// pass fetches the scanner snapshot and folds it into the galaxy under one
// write lock. Errors leave the galaxy as it was. When the scanner cannot be
// reached the newest archived snapshot is merged instead and the fetch error
// is still returned.
func (m *merger) pass(ctx context.Context, now int64) error {
	resp, fetchErr := m.client.Snapshot(ctx, m.request)
	if fetchErr != nil {
		fetchErr = fmt.Errorf("fetch snapshot: %w", fetchErr)
		if resp = m.archived(); resp == nil {
			status.record(now, 0, 0, 0, fetchErr)
			return fetchErr
		}
		ErrorLog.Printf("%v; merging archived snapshot of tick %d", fetchErr, resp.ScanningData.Tick)
	} else if archive != nil {
		stored, err := archive.SaveSnapshot(m.request.GameNumber, resp)
		if err != nil {
			ErrorLog.Printf("Archive snapshot: %v", err)
		} else if stored {
			InfoLog.Printf("Archived snapshot for tick %d", resp.ScanningData.Tick)
		}
	}

	var result *reconcile.Result
	var threats []intel.Threat
	var renderer reconcile.Renderer
	if hub != nil {
		renderer = hub
	}
	err := galaxy.Update(func(s *world.State) error {
		var err error
		if result, err = reconcile.Apply(s, resp, renderer); err != nil {
			return err
		}
		threats = intel.FindThreats(s, cfg.WeaponsGuess)
		return nil
	})
	if err != nil {
		status.record(now, 0, 0, 0, err)
		return fmt.Errorf("merge snapshot: %w", err)
	}

	status.record(now, len(result.Stars), len(result.Fleets), len(threats), fetchErr)
	if !result.Empty() {
		InfoLog.Printf("Merged %d stars, %d fleets at now %d", len(result.Stars), len(result.Fleets), now)
	}
	m.logThreats(threats)
	m.notify(ctx, threats)
	return fetchErr
}

func (m *merger) archived() *types.APIResponse {
	if archive == nil {
		return nil
	}
	resp, err := archive.LatestSnapshot(m.request.GameNumber)
	if err != nil {
		if !errors.Is(err, store.ErrSnapshotNotFound) {
			ErrorLog.Printf("Load archived snapshot: %v", err)
		}
		return nil
	}
	return resp
}

func (m *merger) logThreats(threats []intel.Threat) {
	for _, t := range threats {
		key := fmt.Sprintf("%d/%d/%d", t.FleetUID, t.OrderIndex, t.StarUID)
		if m.seen[key] {
			continue
		}
		m.seen[key] = true

		switch {
		case t.Battle == nil:
			InfoLog.Printf("THREAT: %s -> %s (%s)", t.FleetName, t.StarName, t.Error)
		case t.Battle.AttackerWins:
			InfoLog.Printf("THREAT: %s -> %s, attacker wins with %d ships left", t.FleetName, t.StarName, t.Battle.AttackerShipsRemaining)
		default:
			InfoLog.Printf("THREAT: %s -> %s, defender holds with %d ships left", t.FleetName, t.StarName, t.Battle.DefenderShipsRemaining)
		}
	}
}

// --- Notifications ---

// threatNotice is a threat as a chat message. The id changes when the fleet
// picks up ships, so a reinforced attack is announced again.
type threatNotice struct {
	game   string
	threat intel.Threat
}

func (n threatNotice) ID() string {
	t := n.threat
	return fmt.Sprintf("threat-%s-%d-%d-%d", n.game, t.FleetUID, t.Ships, t.StarUID)
}

func (n threatNotice) Message() string {
	t := n.threat
	msg := fmt.Sprintf("%s's carrier %s is attacking %s's star %s with %d ships",
		t.AttackerAlias, t.FleetName, t.DefenderAlias, t.StarName, t.Ships)
	switch {
	case t.Battle == nil:
		return msg + " (" + t.Error + ")"
	case t.Battle.AttackerWins:
		return fmt.Sprintf("%s, attacker wins with %d ships left", msg, t.Battle.AttackerShipsRemaining)
	default:
		return fmt.Sprintf("%s, defender holds with %d ships left", msg, t.Battle.DefenderShipsRemaining)
	}
}

// notify runs after the galaxy lock is released; delivery errors are logged
// and retried on the next pass.
func (m *merger) notify(ctx context.Context, threats []intel.Threat) {
	if m.notifier == nil || len(threats) == 0 {
		return
	}
	notices := make([]notify.Notifiable, 0, len(threats))
	for _, t := range threats {
		notices = append(notices, threatNotice{game: m.request.GameNumber, threat: t})
	}
	if err := m.notifier.Send(ctx, notices); err != nil {
		ErrorLog.Printf("Threat notifications: %v", err)
	}
}
