package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mdresch/requirements-gathering-agent/internal/fallback"
	"github.com/mdresch/requirements-gathering-agent/internal/library"
	"github.com/mdresch/requirements-gathering-agent/internal/provider"
	"github.com/mdresch/requirements-gathering-agent/internal/resilience"
	"github.com/mdresch/requirements-gathering-agent/internal/runlog"
)

func field(label, value string) string {
	return LabelStyle.Render(label) + value + "\n"
}

// LibrarySummary describes a loaded project library.
func LibrarySummary(lib *library.Library) string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Project library") + "\n")
	sb.WriteString(field("Source", lib.Source))
	sb.WriteString(field("Files", strconv.Itoa(lib.TotalFiles)))
	sb.WriteString(field("Tokens", fmt.Sprintf("%d / %d ceiling (%d max)", lib.TotalTokens, lib.Ceiling, lib.MaxTokens)))
	if lib.Truncated {
		sb.WriteString(WarningStyle.Render(IconWarning+" stopped at the token ceiling; lower-priority files were left out") + "\n")
	}

	sb.WriteString("\n" + HeaderStyle.Render("Categories") + "\n")
	for _, cat := range library.AllCategories {
		files := lib.Categories[cat]
		if len(files) == 0 {
			continue
		}
		sb.WriteString(field(cat.DisplayName(), fmt.Sprintf("%d files, %d tokens", len(files), lib.CategoryTokens(cat))))
	}

	if len(lib.Skipped) > 0 {
		sb.WriteString("\n" + HeaderStyle.Render("Skipped") + "\n")
		for _, s := range lib.Skipped {
			sb.WriteString(ErrorStyle.Render(IconError+" "+s.Path) + Subtle.Render(" "+s.Reason) + "\n")
		}
	}
	return sb.String()
}

// FallbackSummary describes a fallback engine result.
func FallbackSummary(res *fallback.Result) string {
	var sb strings.Builder
	if res.Success {
		sb.WriteString(SuccessStyle.Render(fmt.Sprintf("%s Context fits using %s", IconSuccess, res.Strategy)) + "\n")
	} else {
		sb.WriteString(ErrorStyle.Render(IconError+" Context does not fit any strategy") + "\n")
	}
	sb.WriteString(field("Document type", res.DocumentType))
	sb.WriteString(field("Tokens", fmt.Sprintf("%d %s %d (target %d)", res.OriginalTokens, IconArrow, res.FinalTokens, res.TargetTokens)))
	sb.WriteString(field("Reduction", fmt.Sprintf("%.1f%%", res.ReductionPercentage())))
	if res.Provider != nil {
		sb.WriteString(field("Provider", fmt.Sprintf("%s (%d token window)", res.Provider.Name, res.Provider.ContextWindow)))
	}

	for _, a := range res.Attempts {
		if a.Error == "" {
			sb.WriteString(Subtle.Render(fmt.Sprintf("  %s %s: %d tokens", IconSuccess, a.Strategy, a.Tokens)) + "\n")
			continue
		}
		sb.WriteString(Subtle.Render(fmt.Sprintf("  %s %s: %s", IconError, a.Strategy, a.Error)) + "\n")
	}
	for _, w := range res.Warnings {
		sb.WriteString(WarningStyle.Render(IconWarning+" "+w) + "\n")
	}
	return sb.String()
}

// ProviderTable lists registered providers, marking the active one.
func ProviderTable(caps []provider.Capability, active string, breakers map[string]resilience.BreakerState) string {
	rows := make([][]string, 0, len(caps))
	for _, c := range caps {
		name := c.Name
		if name == active {
			name += " *"
		}
		state := string(resilience.StateClosed)
		if b, ok := breakers[c.Name]; ok {
			state = string(b.State)
		}
		rows = append(rows, []string{name, string(c.Vendor), c.Model, strconv.Itoa(c.ContextWindow), state})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Subtle).
		Headers("PROVIDER", "VENDOR", "MODEL", "WINDOW", "CIRCUIT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle.Padding(0, 1)
			}
			if col == 4 && row >= 0 && row < len(rows) {
				return stateStyle(rows[row][4]).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.Render() + "\n"
}

// BreakerSummary lists breakers that have recorded failures.
func BreakerSummary(states map[string]resilience.BreakerState) string {
	if len(states) == 0 {
		return Subtle.Render("No provider failures recorded") + "\n"
	}
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		st := states[name]
		sb.WriteString(field(name, stateStyle(string(st.State)).Render(string(st.State))+
			Subtle.Render(fmt.Sprintf(" (%d failures)", st.Failures))))
	}
	return sb.String()
}

// RunList shows recorded runs, newest first.
func RunList(runs []*runlog.Record) string {
	if len(runs) == 0 {
		return Subtle.Render("No runs recorded") + "\n"
	}
	var sb strings.Builder
	for _, r := range runs {
		icon, style := IconSuccess, SuccessStyle
		if r.Status != runlog.StatusSucceeded {
			icon, style = IconError, ErrorStyle
		}
		line := fmt.Sprintf("%s %s  %-22s %-12s %s", icon, r.CreatedAt.Local().Format(time.DateTime), r.DocumentType, r.Provider, r.ID)
		sb.WriteString(style.Render(line) + "\n")
		if r.Error != "" {
			sb.WriteString(Subtle.Render("    "+r.Error) + "\n")
		}
	}
	return sb.String()
}

// Warn formats a warning line.
func Warn(msg string) string {
	return WarningStyle.Render(IconWarning+" "+msg) + "\n"
}

// Fail formats an error line.
func Fail(msg string) string {
	return ErrorStyle.Render(IconError+" "+msg) + "\n"
}

// Note formats an informational line.
func Note(msg string) string {
	return Subtle.Render(IconInfo+" "+msg) + "\n"
}
