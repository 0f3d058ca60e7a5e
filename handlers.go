package main

import (
	"errors"
	"net/http"
	"strconv"

	"mapembed/pkg/game"
	"mapembed/pkg/intel"
	"mapembed/pkg/world"
)

// --- Map Viewer API ---

func handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, galaxyExport())
}

func handleThreats(w http.ResponseWriter, r *http.Request) {
	var threats []intel.Threat
	galaxy.View(func(s *world.State) {
		threats = intel.FindThreats(s, cfg.WeaponsGuess)
	})
	writeJSON(w, http.StatusOK, threats)
}

// handleBattle estimates an attack from query numbers:
// as/aw are attacker ships and weapons, ds/dw the defender's.
func handleBattle(w http.ResponseWriter, r *http.Request) {
	var inputs [4]int
	for i, key := range []string{"as", "aw", "ds", "dw"} {
		n, err := strconv.Atoi(r.URL.Query().Get(key))
		if err != nil {
			http.Error(w, "Bad "+key, http.StatusBadRequest)
			return
		}
		inputs[i] = n
	}

	battle, err := game.GuessBattle(inputs[0], inputs[1], inputs[2], inputs[3])
	switch {
	case errors.Is(err, game.ErrNegativeInput), errors.Is(err, game.ErrInputTooLarge):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, game.ErrImpossibleDraw):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, battle)
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	var now int64
	var tick int
	galaxy.View(func(s *world.State) {
		now, tick = s.Now(), s.Tick()
	})
	viewers := 0
	if hub != nil {
		viewers = hub.ViewerCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game":    cfg.GameNumber,
		"now":     now,
		"tick":    tick,
		"viewers": viewers,
		"merge":   status.snapshot(),
	})
}

// handleSnapshots lists the archive and whether its hash chain holds.
func handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if archive == nil {
		http.Error(w, "No archive", http.StatusServiceUnavailable)
		return
	}
	infos, err := archive.ListSnapshots(cfg.GameNumber, SnapshotListMax)
	if err != nil {
		ErrorLog.Printf("List snapshots: %v", err)
		http.Error(w, "DB Error", http.StatusInternalServerError)
		return
	}
	chain := "ok"
	if err := archive.VerifyChain(cfg.GameNumber); err != nil {
		chain = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": infos,
		"chain":     chain,
	})
}

func handleWS(w http.ResponseWriter, r *http.Request) {
	if hub == nil {
		http.Error(w, "Render hub offline", http.StatusServiceUnavailable)
		return
	}
	hub.ServeWS(w, r)
}

func newRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", handleState)
	mux.HandleFunc("/api/threats", handleThreats)
	mux.HandleFunc("/api/battle", handleBattle)
	mux.HandleFunc("/api/status", handleStatus)
	mux.HandleFunc("/api/snapshots", handleSnapshots)
	mux.HandleFunc("/ws", handleWS)

	handler := middlewareSecurity(mux)
	return middlewareCORS(handler)
}
