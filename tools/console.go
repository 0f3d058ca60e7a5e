package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"mapembed/pkg/game"
	"mapembed/pkg/intel"
)

var ServerURL = "http://localhost:8080"

var client = &http.Client{Timeout: 10 * time.Second}

// --- Models ---
type StatusResponse struct {
	Game    string `json:"game"`
	Now     int64  `json:"now"`
	Tick    int    `json:"tick"`
	Viewers int    `json:"viewers"`
	Merge   struct {
		Passes       int    `json:"passes"`
		LastError    string `json:"last_error"`
		StarsMerged  int    `json:"stars_merged"`
		FleetsMerged int    `json:"fleets_merged"`
	} `json:"merge"`
}

func main() {
	if server := os.Getenv("MAPEMBED_SERVER"); server != "" {
		ServerURL = server
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("mapembed console")
	fmt.Printf("Target Server: %s\n", ServerURL)
	fmt.Println("Commands: status, threats, battle, help, quit")

	for {
		fmt.Print("> ")
		text, err := reader.ReadString('\n')
		if err != nil && text == "" {
			return
		}
		parts := strings.Fields(text)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "status":
			doStatus(os.Stdout)
		case "threats":
			doThreats(os.Stdout)
		case "battle":
			if len(parts) != 5 {
				fmt.Println("Usage: battle <att ships> <att weapons> <def ships> <def weapons>")
				continue
			}
			doBattle(os.Stdout, parts[1], parts[2], parts[3], parts[4])
		case "help":
			fmt.Println("Available Commands:")
			fmt.Println("  status               - Galaxy clock and merge loop health")
			fmt.Println("  threats              - Fleets heading for someone else's star")
			fmt.Println("  battle <as aw ds dw> - Estimate a fight")
			fmt.Println("  quit                 - Disconnect")
		case "quit", "exit":
			fmt.Println("Disconnecting...")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for options.")
		}
	}
}

// getJSON decodes a 200 response into v and returns the body of anything else.
func getJSON(path string, v any) error {
	resp, err := client.Get(ServerURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func doStatus(out io.Writer) {
	var s StatusResponse
	if err := getJSON("/api/status", &s); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Game: %s | Tick: %d | Now: %d | Viewers: %d\n", s.Game, s.Tick, s.Now, s.Viewers)
	fmt.Fprintf(out, "Passes: %d | Last merge: %d stars, %d fleets\n", s.Merge.Passes, s.Merge.StarsMerged, s.Merge.FleetsMerged)
	if s.Merge.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", s.Merge.LastError)
	}
}

func doThreats(out io.Writer) {
	var threats []intel.Threat
	if err := getJSON("/api/threats", &threats); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if len(threats) == 0 {
		fmt.Fprintln(out, "No threats.")
		return
	}

	fmt.Fprintln(out, "Fleet                | Target               | Outcome")
	fmt.Fprintln(out, "---------------------|----------------------|--------------------")
	for _, t := range threats {
		outcome := t.Error
		if t.Battle != nil && t.Battle.AttackerWins {
			outcome = fmt.Sprintf("falls, %d attackers left", t.Battle.AttackerShipsRemaining)
		} else if t.Battle != nil {
			outcome = fmt.Sprintf("holds, %d defenders left", t.Battle.DefenderShipsRemaining)
		}
		fmt.Fprintf(out, "%-20s | %-20s | %s\n", t.FleetName, t.StarName, outcome)
	}
}

func doBattle(out io.Writer, as, aw, ds, dw string) {
	query := url.Values{"as": {as}, "aw": {aw}, "ds": {ds}, "dw": {dw}}
	var b game.Battle
	if err := getJSON("/api/battle?"+query.Encode(), &b); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if b.AttackerWins {
		fmt.Fprintf(out, "Attacker wins with %d ships after %d ticks\n", b.AttackerShipsRemaining, b.LowestTicks)
		return
	}
	fmt.Fprintf(out, "Defender wins with %d ships after %d ticks\n", b.DefenderShipsRemaining, b.LowestTicks)
}
