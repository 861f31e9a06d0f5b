package browser

import (
	"context"
	"time"

	"go-upwork-assistant/internal/models"
)

// Event is a page lifecycle signal delivered by a Tab
type Event int

const (
	// EventNavigating fires when the main frame requests a new document
	EventNavigating Event = iota + 1
	// EventComplete fires when the page finished loading
	EventComplete
	// EventClosed fires once when the tab goes away
	EventClosed
)

func (e Event) String() string {
	switch e {
	case EventNavigating:
		return "navigating"
	case EventComplete:
		return "complete"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StabilityConfig tunes WaitStable
type StabilityConfig struct {
	// Settle is how long a completed page must stay put before it counts as stable
	Settle time.Duration
	// AntiBot replaces Settle once a redirect was seen during settling
	AntiBot time.Duration
	// Ceiling bounds the whole wait
	Ceiling time.Duration
}

// DefaultStability is 1.5s settle, 10s after a challenge redirect, 60s overall
var DefaultStability = StabilityConfig{
	Settle:  1500 * time.Millisecond,
	AntiBot: 10 * time.Second,
	Ceiling: 60 * time.Second,
}

// WaitStable blocks until the page behind events has finished loading and
// stayed on the same document for the settle window.
//
// Anti-bot interstitials load a challenge page and then redirect to the real
// one, so a navigation that arrives while a settle timer is pending restarts
// it with the longer AntiBot window, as does every completion after that. A
// navigation that never produces a load settles once that window passes.
func WaitStable(ctx context.Context, events <-chan Event, cfg StabilityConfig) error {
	ceiling := time.NewTimer(cfg.Ceiling)
	defer ceiling.Stop()

	var (
		settle     *time.Timer
		settleC    <-chan time.Time
		challenged bool
	)
	stopSettle := func() {
		if settle != nil {
			settle.Stop()
		}
		settleC = nil
	}
	defer stopSettle()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ceiling.C:
			return models.ErrStabilityTimeout

		case <-settleC:
			return nil

		case ev, ok := <-events:
			if !ok {
				return models.ErrTabClosed
			}
			switch ev {
			case EventComplete:
				window := cfg.Settle
				if challenged {
					window = cfg.AntiBot
				}
				stopSettle()
				settle = time.NewTimer(window)
				settleC = settle.C
			case EventNavigating:
				// a redirect after load; wait the long window for its load,
				// and settle anyway if none follows
				if settleC != nil {
					challenged = true
					stopSettle()
					settle = time.NewTimer(cfg.AntiBot)
					settleC = settle.C
				}
			case EventClosed:
				return models.ErrTabClosed
			}
		}
	}
}
