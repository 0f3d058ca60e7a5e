package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"mapembed/pkg/store"
)

// promptMatch asks the first-start questions for a match: whether to use the
// scanner at all and, once enabled, where it lives and the access code. The
// answers are remembered, so every question is asked once per match until
// the match is wiped.
func promptMatch(in io.Reader, out io.Writer, st *store.Store, gameID string) (*store.Match, error) {
	match, err := st.FindOrCreateMatch(gameID)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(in)

	if !match.Prompted {
		match.Prompted = true
		match.Enabled = askYesNo(scanner, out, "Enable NP-Scanner for this match?")
		if err := st.SaveMatch(match); err != nil {
			return nil, err
		}
	}

	if !match.Enabled {
		return match, nil
	}

	if !match.AskedForCreds {
		settings, err := st.Settings()
		if err != nil {
			return nil, err
		}
		if settings.LastURL == "" {
			settings.LastURL = DefaultScanURL
		}

		match.AskedForCreds = true
		match.URL = ask(scanner, out, "Enter NP-Scanner url", settings.LastURL)
		match.Code = ask(scanner, out, "Enter NP-Scanner access code", settings.LastCode)
		if err := st.SaveMatch(match); err != nil {
			return nil, err
		}

		settings.LastURL, settings.LastCode = match.URL, match.Code
		if err := st.SaveSettings(settings); err != nil {
			return nil, err
		}
	}
	return match, nil
}

// wipeMatch makes the next start ask again, e.g. after a wrong access code.
func wipeMatch(st *store.Store, gameID string) error {
	match, err := st.FindOrCreateMatch(gameID)
	if err != nil {
		return err
	}
	match.Prompted = false
	match.AskedForCreds = false
	return st.SaveMatch(match)
}

// ask returns fallback on an empty answer or closed input.
func ask(scanner *bufio.Scanner, out io.Writer, question, fallback string) string {
	if fallback != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, fallback)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}
	if !scanner.Scan() {
		fmt.Fprintln(out)
		return fallback
	}
	answer := strings.TrimSpace(scanner.Text())
	if answer == "" {
		return fallback
	}
	return answer
}

func askYesNo(scanner *bufio.Scanner, out io.Writer, question string) bool {
	switch strings.ToLower(ask(scanner, out, question+" (y/n)", "")) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
