// Package ui provides the terminal user interface for killfeed.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. It renders the shared stores but never
// owns feed data: the feed store, search overlay, entity cache, and
// connection controller are built by the app package and passed in through
// Options. The model translates store notifications and user input into
// repaints and store calls.
//
// # Package Structure
//
//   - ui.go: Options, the root model, message plumbing, and Run
//   - keys.go: Input handling and the async store commands
//   - view.go: Feed row formatting, status bar, and help rendering
//   - scroll.go: Scroll-position pagination triggers
//   - theme.go: Lipgloss themes and styles
//
// # Event Flow
//
//  1. Run subscribes to the feed store and forwards changes as messages.
//  2. A new-event change scrolls to top, optionally rings the bell, and
//     schedules a flush on the next frame so bursts evict once, not per event.
//  3. Scrolling near the bottom of the viewport pages older events in,
//     throttled so held-down keys issue one request, not dozens.
//  4. A once-a-second tick repaints the reconnect countdown and lets
//     arrival highlights decay.
//
// # Key Bindings
//
//   - j/k, ctrl+d/ctrl+u: scroll
//   - g: jump to newest, resyncing the window when pagination drifted far
//   - G: jump to oldest loaded
//   - /: search, esc returns to the live feed
//   - r: reconnect now
//   - t: cycle theme, m: toggle sound (both persisted)
//   - ?: help, q: quit
package ui
