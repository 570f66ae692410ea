package sidebar

import (
	"strings"
	"sync"
	"time"

	"research-chat-be/pkg/chatclient"
)

// ScrollConfig holds the follow heuristics, in pixels.
type ScrollConfig struct {
	// Scroll deltas below this are layout jitter, not user intent.
	SignificantDelta float64
	// Distance from the bottom under which the viewer counts as at the live edge.
	NearBottom float64
	// Looser bound used while following a stream, since content grows in bursts.
	StreamFollowTolerance float64
	// How long a programmatic scroll may take to echo back as a scroll event.
	ProgrammaticWindow time.Duration
}

func DefaultScrollConfig() ScrollConfig {
	return ScrollConfig{
		SignificantDelta:      5,
		NearBottom:            150,
		StreamFollowTolerance: 250,
		ProgrammaticWindow:    150 * time.Millisecond,
	}
}

type Metrics struct {
	ScrollTop    float64
	ScrollHeight float64
	ClientHeight float64
}

func (m Metrics) DistanceFromBottom() float64 {
	d := m.ScrollHeight - m.ScrollTop - m.ClientHeight
	if d < 0 {
		return 0
	}
	return d
}

type ScrollCommand struct {
	ScrollToBottom bool
}

// Scroller applies scroll commands to a real viewport.
type Scroller interface {
	ScrollToBottom()
}

// ScrollController decides when the message list follows new content.
type ScrollController struct {
	cfg      ScrollConfig
	scroller Scroller
	now      func() time.Time

	mu             sync.Mutex
	lastScrollTop  float64
	seenScroll     bool
	userScrolledUp bool
	streaming      bool
	following      bool
	programmatic   bool
	programmaticAt time.Time
}

// NewScrollController accepts a nil scroller; callers then act on the returned commands.
func NewScrollController(cfg ScrollConfig, scroller Scroller) *ScrollController {
	return &ScrollController{cfg: cfg, scroller: scroller, now: time.Now}
}

func (c *ScrollController) UserScrolledUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userScrolledUp
}

func (c *ScrollController) Following() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.following
}

// OnUserScroll classifies a scroll event from the viewport.
func (c *ScrollController) OnUserScroll(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.programmatic {
		c.programmatic = false
		if c.now().Sub(c.programmaticAt) <= c.cfg.ProgrammaticWindow {
			c.lastScrollTop = m.ScrollTop
			c.seenScroll = true
			return
		}
	}

	delta := m.ScrollTop - c.lastScrollTop
	if delta < 0 {
		delta = -delta
	}
	significant := !c.seenScroll || delta >= c.cfg.SignificantDelta
	c.lastScrollTop = m.ScrollTop
	c.seenScroll = true
	if !significant {
		return
	}

	if m.DistanceFromBottom() >= c.cfg.NearBottom {
		c.userScrolledUp = true
		c.following = false
		return
	}
	c.userScrolledUp = false
	if c.streaming {
		c.following = true
	}
}

// OnMessageAdded handles a message appended to the list.
// User messages always jump to the bottom; a streaming placeholder decides whether to follow.
func (c *ScrollController) OnMessageAdded(msg chatclient.Message, m Metrics) ScrollCommand {
	c.mu.Lock()
	var cmd ScrollCommand
	switch {
	case msg.Role == chatclient.RoleUser:
		c.userScrolledUp = false
		cmd = c.markProgrammatic()
	case strings.HasPrefix(msg.ID, StreamingPrefix):
		c.streaming = true
		c.following = !c.userScrolledUp && m.DistanceFromBottom() < c.cfg.NearBottom
		if c.following {
			cmd = c.markProgrammatic()
		}
	}
	c.mu.Unlock()
	return c.apply(cmd)
}

// OnContentGrow is called whenever streamed content changes the list height.
func (c *ScrollController) OnContentGrow(m Metrics) ScrollCommand {
	c.mu.Lock()
	var cmd ScrollCommand
	if c.following && !c.userScrolledUp && m.DistanceFromBottom() < c.cfg.StreamFollowTolerance {
		cmd = c.markProgrammatic()
	}
	c.mu.Unlock()
	return c.apply(cmd)
}

func (c *ScrollController) OnStreamEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = false
	c.following = false
}

// markProgrammatic must be called with mu held.
func (c *ScrollController) markProgrammatic() ScrollCommand {
	c.programmatic = true
	c.programmaticAt = c.now()
	return ScrollCommand{ScrollToBottom: true}
}

// apply runs outside the lock: a scroller may echo a scroll event synchronously.
func (c *ScrollController) apply(cmd ScrollCommand) ScrollCommand {
	if cmd.ScrollToBottom && c.scroller != nil {
		c.scroller.ScrollToBottom()
	}
	return cmd
}
