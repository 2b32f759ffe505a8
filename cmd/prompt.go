package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/mdresch/requirements-gathering-agent/internal/fallback"
)

// selectDocType shows an interactive picker over the known document types.
func selectDocType(extra map[string]fallback.Profile) (string, error) {
	seen := make(map[string]bool)
	var types []string
	for name := range fallback.DefaultProfiles() {
		seen[name] = true
		types = append(types, name)
	}
	for name := range extra {
		if name = fallback.NormalizeDocumentType(name); !seen[name] {
			seen[name] = true
			types = append(types, name)
		}
	}
	sort.Strings(types)

	searcher := func(input string, index int) bool {
		return strings.Contains(types[index], strings.ToLower(input))
	}

	prompt := promptui.Select{
		Label:             "Select a document type",
		Items:             types,
		Size:              10,
		Searcher:          searcher,
		StartInSearchMode: true,
		HideSelected:      true,
	}

	_, result, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return result, nil
}

// confirmReduction asks before generating from heavily reduced context.
// Declining returns errAborted.
func confirmReduction(pct float64, strategy fallback.Strategy) error {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Context was reduced by %.0f%% using %s. Generate anyway", pct, strategy),
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return errAborted
		}
		return err
	}
	return nil
}

var errAborted = errors.New("aborted by user")
