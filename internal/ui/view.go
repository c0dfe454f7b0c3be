package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kmorand/killfeed/internal/conn"
	"github.com/kmorand/killfeed/internal/event"
)

// refreshContent re-renders the event list into the viewport. The search
// overlay, when active, replaces the live feed entirely.
func (m *Model) refreshContent() {
	if !m.ready {
		return
	}

	var events []event.KillEvent
	searching := m.search != nil && m.search.Active()
	if searching {
		events = m.search.Results()
	} else if m.feed != nil {
		events = m.feed.Events()
	}

	styles := m.theme.Styles()
	if len(events) == 0 {
		empty := "waiting for events"
		if searching {
			empty = fmt.Sprintf("no matches for %q", m.search.Query())
		}
		m.viewport.SetContent(styles.FaintText.Render(empty))
		return
	}

	lines := make([]string, 0, len(events)+1)
	for _, ev := range events {
		highlighted := !searching && m.feed != nil && m.feed.Highlighted(ev.ID)
		lines = append(lines, m.formatEvent(ev, styles, highlighted))
	}
	if m.moreAvailable(searching) {
		lines = append(lines, styles.FaintText.Render("  ... scroll for older events"))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

func (m *Model) moreAvailable(searching bool) bool {
	if searching {
		return m.search.HasMore()
	}
	return m.feed != nil && m.feed.HasMore()
}

// formatEvent renders one feed row. Entity ids pass through the resolver so
// raw identifiers never reach the screen.
func (m *Model) formatEvent(ev event.KillEvent, styles Styles, highlighted bool) string {
	ts := "--:--:--"
	if t := ev.ParsedTime(); !t.IsZero() {
		ts = t.Local().Format("15:04:05")
	}

	killers := m.names(ev.Killers)
	victims := m.names(ev.Victims)
	if killers == "" {
		killers = "environment"
	}
	if victims == "" {
		victims = "unknown"
	}

	deathStyle := styles.DeathStyle(ev.DeathType)
	parts := []string{
		styles.FaintText.Render(ts),
		sourceBadge(ev.Metadata.Source, styles),
		styles.Text.Render(killers),
		deathStyle.Render(deathVerb(ev.DeathType)),
		styles.Text.Render(victims),
	}

	var detail []string
	if ev.Weapon != "" {
		detail = append(detail, m.name(ev.Weapon))
	}
	if ev.VehicleModel != "" {
		detail = append(detail, m.name(ev.VehicleModel))
	} else if ev.VehicleType != "" {
		detail = append(detail, m.name(ev.VehicleType))
	}
	if ev.Location != "" {
		detail = append(detail, "near "+m.name(ev.Location))
	}
	if len(detail) > 0 {
		parts = append(parts, styles.MutedText.Render("("+strings.Join(detail, ", ")+")"))
	}

	line := strings.Join(parts, " ")
	if highlighted {
		return styles.Highlight.Render(line)
	}
	return line
}

// names resolves and joins a participant list, tagging NPCs.
func (m *Model) names(ids []string) string {
	resolved := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		resolved = append(resolved, m.name(id))
	}
	return strings.Join(resolved, ", ")
}

func (m *Model) name(id string) string {
	if m.resolver == nil {
		return id
	}
	display := m.resolver.DisplayName(id)
	if m.resolver.IsNPC(id) {
		return display + " [NPC]"
	}
	return display
}

func deathVerb(d event.DeathType) string {
	switch d.Known() {
	case event.DeathCombat:
		return "killed"
	case event.DeathHard:
		return "destroyed"
	case event.DeathSoft:
		return "disabled"
	case event.DeathCollision:
		return "rammed"
	case event.DeathCrash:
		return "crashed into"
	case event.DeathBleedOut:
		return "bled out"
	case event.DeathSuffocation:
		return "suffocated"
	default:
		return "downed"
	}
}

func sourceBadge(src event.Source, styles Styles) string {
	switch {
	case src.Server && src.Local:
		return styles.AccentText.Render("[SL]")
	case src.Local:
		return styles.WarningText.Render("[L]")
	default:
		return styles.FaintText.Render("[S]")
	}
}

func (m Model) renderMain() string {
	styles := m.theme.Styles()

	var sections []string
	sections = append(sections, m.renderHeader(styles))
	sections = append(sections, m.viewport.View())
	if m.searchMode {
		sections = append(sections, m.searchInput.View())
	}
	sections = append(sections, m.renderStatus(styles))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(styles Styles) string {
	title := "killfeed"
	if m.search != nil && m.search.Active() {
		title = fmt.Sprintf("killfeed  search: %s", m.search.Query())
	}
	line := styles.Header.Width(m.width).Render(title)
	return line
}

func (m Model) renderStatus(styles Styles) string {
	left := m.connLabel(styles)

	var right []string
	if m.feed != nil {
		if off := m.feed.WindowOffset(); off > 0 {
			right = append(right, fmt.Sprintf("+%d older above window", off))
		}
		if m.feed.Loading() {
			right = append(right, "loading")
		}
	}
	right = append(right, "? help")

	bar := left
	if len(right) > 0 {
		bar += styles.FaintText.Render("  |  " + strings.Join(right, "  "))
	}
	return styles.Footer.Width(m.width).Render(bar)
}

func (m Model) connLabel(styles Styles) string {
	s := m.connState
	switch s.Status {
	case conn.StatusConnected:
		if s.ShowSuccess {
			return styles.SuccessText.Render("connected")
		}
		return styles.Text.Render("connected")
	case conn.StatusConnecting:
		return styles.WarningText.Render("connecting...")
	case conn.StatusDisconnected:
		if s.Countdown > 0 {
			return styles.DangerText.Render(
				fmt.Sprintf("disconnected, retry in %ds (attempt %d)", int(s.Countdown.Seconds())+1, s.Attempts))
		}
		return styles.DangerText.Render("disconnected")
	case conn.StatusError:
		return styles.DangerText.Render("connection error, press r to retry")
	default:
		return styles.MutedText.Render("unknown")
	}
}

func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	rows := []struct{ key, desc string }{
		{"j / k", "scroll down / up"},
		{"ctrl+d / ctrl+u", "half page down / up"},
		{"g", "jump to newest (resyncs when far back)"},
		{"G", "jump to oldest loaded"},
		{"/", "search events"},
		{"esc", "leave search, back to live feed"},
		{"r", "reconnect now"},
		{"t", "cycle theme"},
		{"m", "toggle new-event sound"},
		{"?", "toggle this help"},
		{"q", "quit"},
	}

	var b strings.Builder
	b.WriteString(styles.AccentText.Render("killfeed keys"))
	b.WriteString("\n\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			styles.Text.Render(fmt.Sprintf("%-16s", r.key)),
			styles.MutedText.Render(r.desc)))
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("  press esc to close"))
	return b.String()
}
