package ui

import (
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmorand/killfeed/internal/prefs"
	"github.com/kmorand/killfeed/internal/search"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchMode {
		return m.handleSearchKey(msg)
	}

	if m.showHelp {
		switch msg.String() {
		case "esc", "?", "q":
			m.showHelp = false
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "/":
		m.searchMode = true
		m.searchInput.Focus()
		m.viewport.Height = m.contentHeight()
		return m, nil

	case "r":
		if m.ctrl != nil {
			m.ctrl.ReconnectNow()
			m.connState = m.ctrl.State()
		}
		return m, nil

	case "t":
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.refreshContent()
		return m, nil

	case "m":
		m.sound = !m.sound
		m.savePrefs()
		return m, nil

	case "g", "home":
		return m.jumpToTop()

	case "G", "end":
		m.followTop = false
		m.viewport.GotoBottom()
		return m, m.maybeLoadMore()

	case "j", "down":
		m.followTop = false
		m.viewport.ScrollDown(1)
		return m, m.maybeLoadMore()

	case "k", "up":
		m.viewport.ScrollUp(1)
		m.followTop = m.viewport.AtTop()
		return m, nil

	case "pgdown", "ctrl+d":
		m.followTop = false
		m.viewport.HalfPageDown()
		return m, m.maybeLoadMore()

	case "pgup", "ctrl+u":
		m.viewport.HalfPageUp()
		m.followTop = m.viewport.AtTop()
		return m, nil
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchMode = false
		m.searchGen++
		m.searchInput.Reset()
		m.searchInput.Blur()
		if m.search != nil {
			m.search.Clear()
		}
		m.viewport.Height = m.contentHeight()
		m.refreshContent()
		m.viewport.GotoTop()
		m.followTop = true
		return m, nil

	case "enter":
		// Fire immediately, skipping the debounce window.
		m.searchGen++
		return m, m.searchCmd(m.searchInput.Value())

	case "ctrl+c":
		return m, tea.Quit
	}

	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if m.searchInput.Value() == before {
		return m, cmd
	}

	// Text changed: restart the debounce window. Only the newest generation
	// survives to fire a query.
	m.searchGen++
	gen := m.searchGen
	debounce := tea.Tick(search.DebounceFor, func(time.Time) tea.Msg {
		return debounceMsg{gen: gen}
	})
	return m, tea.Batch(cmd, debounce)
}

// jumpToTop returns to the newest events. When pagination has dragged the
// window far from the live edge, the whole window reloads instead of
// scrolling through stale pages.
func (m Model) jumpToTop() (tea.Model, tea.Cmd) {
	m.followTop = true
	m.viewport.GotoTop()
	if m.search == nil || !m.search.Active() {
		if m.feed != nil && m.feed.ShouldResync() {
			return m, m.resetCmd()
		}
	}
	return m, nil
}

func (m *Model) maybeLoadMore() tea.Cmd {
	if time.Since(m.lastLoadMore) < loadMoreEvery {
		return nil
	}
	if !shouldLoadMore(m.viewport.YOffset, m.viewport.Height, m.viewport.TotalLineCount()) {
		return nil
	}

	if m.search != nil && m.search.Active() {
		if !m.search.HasMore() || m.search.Loading() {
			return nil
		}
		m.lastLoadMore = time.Now()
		return m.searchMoreCmd()
	}

	if m.feed == nil || !m.feed.HasMore() || m.feed.Loading() {
		return nil
	}
	m.lastLoadMore = time.Now()
	return m.loadMoreCmd()
}

func (m Model) loadMoreCmd() tea.Cmd {
	feedStore, ctx := m.feed, m.ctx
	return func() tea.Msg {
		err := feedStore.LoadMore(ctx, feedPageSize)
		if err != nil {
			log.Printf("ui: load more failed: %v", err)
		}
		return loadMoreDoneMsg{err: err}
	}
}

func (m Model) searchCmd(query string) tea.Cmd {
	overlay, ctx := m.search, m.ctx
	if overlay == nil {
		return nil
	}
	return func() tea.Msg {
		err := overlay.Start(ctx, query)
		if err != nil {
			log.Printf("ui: search failed: %v", err)
		}
		return searchDoneMsg{err: err}
	}
}

func (m Model) searchMoreCmd() tea.Cmd {
	overlay, ctx := m.search, m.ctx
	return func() tea.Msg {
		err := overlay.LoadMore(ctx)
		if err != nil {
			log.Printf("ui: search page failed: %v", err)
		}
		return searchMoreDoneMsg{err: err}
	}
}

func (m Model) resetCmd() tea.Cmd {
	feedStore, ctx := m.feed, m.ctx
	return func() tea.Msg {
		err := feedStore.ResetToRecent(ctx)
		if err != nil {
			log.Printf("ui: resync failed: %v", err)
		}
		return resetDoneMsg{err: err}
	}
}

func (m Model) savePrefs() {
	p := prefs.Prefs{Theme: m.theme.Name, Sound: m.sound}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		log.Printf("ui: save prefs: %v", err)
	}
}
