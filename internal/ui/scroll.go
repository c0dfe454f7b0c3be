package ui

// Scroll-driven pagination triggers. The viewport works in rendered lines;
// the thresholds below are the line-unit rendition of the desktop trigger
// policy (adaptive near-bottom band, 90% travel fraction, absolute bottom).

const (
	triggerFraction = 0.90
	minTriggerBand  = 5
	maxTriggerBand  = 15
	bandFraction    = 0.15
	bottomTolerance = 1
)

// triggerBand returns the near-bottom band, in lines, that arms a load:
// 15% of the viewport height clamped to [minTriggerBand, maxTriggerBand].
func triggerBand(viewportHeight int) int {
	band := int(float64(viewportHeight) * bandFraction)
	if band < minTriggerBand {
		band = minTriggerBand
	}
	if band > maxTriggerBand {
		band = maxTriggerBand
	}
	return band
}

// shouldLoadMore reports whether the current scroll position warrants
// fetching the next page. yOffset is the first visible line, viewportHeight
// the visible line count, total the rendered content height.
func shouldLoadMore(yOffset, viewportHeight, total int) bool {
	if total <= viewportHeight {
		// Everything fits; only an explicit jump to bottom should page.
		return false
	}
	bottom := yOffset + viewportHeight
	remaining := total - bottom
	if remaining <= bottomTolerance {
		return true
	}
	if float64(bottom)/float64(total) >= triggerFraction {
		return true
	}
	return remaining <= triggerBand(viewportHeight)
}
