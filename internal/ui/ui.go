package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmorand/killfeed/internal/conn"
	"github.com/kmorand/killfeed/internal/feed"
	"github.com/kmorand/killfeed/internal/prefs"
	"github.com/kmorand/killfeed/internal/search"
)

// Resolver is the read surface of the entity cache the views render with.
type Resolver interface {
	DisplayName(id string) string
	IsNPC(id string) bool
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Feed      *feed.Store
	Search    *search.Overlay
	Resolver  Resolver
	Conn      *conn.Controller
	Prefs     prefs.Prefs
	PrefsPath string
}

const (
	feedPageSize = 25
	// flushDelay coalesces rapid prepends into one eviction pass, the TUI
	// equivalent of an animation-frame callback.
	flushDelay = 16 * time.Millisecond
	// loadMoreEvery throttles scroll-driven pagination triggers.
	loadMoreEvery = 100 * time.Millisecond
)

type (
	tickMsg       time.Time
	flushMsg      struct{}
	feedChangeMsg feed.Change

	debounceMsg struct{ gen int }

	loadMoreDoneMsg   struct{ err error }
	searchDoneMsg     struct{ err error }
	searchMoreDoneMsg struct{ err error }
	resetDoneMsg      struct{ err error }
)

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	feed      *feed.Store
	search    *search.Overlay
	resolver  Resolver
	ctrl      *conn.Controller
	prefsPath string

	theme  Theme
	width  int
	height int
	ready  bool
	sound  bool

	viewport viewport.Model

	searchMode  bool
	searchInput textinput.Model
	searchGen   int

	connState conn.State

	showHelp       bool
	flushScheduled bool
	lastLoadMore   time.Time
	followTop      bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "search events"
	input.CharLimit = 120

	m := Model{
		ctx:         ctx,
		feed:        opts.Feed,
		search:      opts.Search,
		resolver:    opts.Resolver,
		ctrl:        opts.Conn,
		prefsPath:   prefsPath,
		theme:       GetTheme(opts.Prefs.Theme),
		sound:       opts.Prefs.Sound,
		searchInput: input,
		followTop:   true,
	}
	if opts.Conn != nil {
		m.connState = opts.Conn.State()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func flushCmd() tea.Cmd {
	return tea.Tick(flushDelay, func(time.Time) tea.Msg { return flushMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.contentHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.contentHeight()
		}
		m.refreshContent()
		return m, nil

	case tickMsg:
		// Countdown, highlight decay, and status repaint.
		if m.ctrl != nil {
			m.connState = m.ctrl.State()
		}
		m.refreshContent()
		return m, tickCmd()

	case feedChangeMsg:
		return m.handleFeedChange(feed.Change(msg))

	case flushMsg:
		m.flushScheduled = false
		if m.feed != nil {
			m.feed.Flush()
		}
		m.refreshContent()
		if m.followTop {
			m.viewport.GotoTop()
		}
		return m, nil

	case debounceMsg:
		if msg.gen != m.searchGen || !m.searchMode {
			return m, nil
		}
		return m, m.searchCmd(m.searchInput.Value())

	case searchDoneMsg, searchMoreDoneMsg, loadMoreDoneMsg, resetDoneMsg:
		// Pagination and search failures surface as "no more data", never a
		// banner; just repaint with whatever the stores hold now.
		m.refreshContent()
		return m, nil
	}

	if m.searchMode {
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleFeedChange reacts to store notifications forwarded by Run.
func (m Model) handleFeedChange(c feed.Change) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch c.Kind {
	case feed.ChangeNew:
		// New arrival: scroll to top and ring the bell, eviction on the next
		// frame.
		m.followTop = true
		if m.sound {
			cmds = append(cmds, bellCmd())
		}
		if !m.flushScheduled {
			m.flushScheduled = true
			cmds = append(cmds, flushCmd())
		}
	case feed.ChangeUpdated:
		if !m.flushScheduled {
			m.flushScheduled = true
			cmds = append(cmds, flushCmd())
		}
	case feed.ChangeLoaded, feed.ChangeCleared:
		// The whole window was replaced; stale scroll offsets mean nothing.
		m.followTop = true
	}
	m.refreshContent()
	if m.followTop {
		m.viewport.GotoTop()
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m *Model) contentHeight() int {
	// Header, status bar, and (in search mode) the input line.
	h := m.height - 2
	if m.searchMode {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

func bellCmd() tea.Cmd {
	return func() tea.Msg {
		fmt.Fprint(os.Stderr, "\a")
		return nil
	}
}

// Run wires the model to the stores and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(opts.Context))

	if opts.Feed != nil {
		sub := opts.Feed.Subscribe(func(c feed.Change) {
			p.Send(feedChangeMsg(c))
		})
		defer opts.Feed.Unsubscribe(sub)
	}

	_, err := p.Run()
	return err
}
