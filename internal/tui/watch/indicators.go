package watch

import (
	"strings"
	"time"
)

const pulseWidth = 5

// Pulse lights up when notifications flow and fades while the stream is quiet.
type Pulse struct {
	dots     int
	lastSeen time.Time
}

func (p *Pulse) OnEvent(at time.Time) {
	p.dots = pulseWidth
	p.lastSeen = at
}

// Decay drops one dot for every two seconds without an event.
func (p *Pulse) Decay(now time.Time) {
	if p.dots == 0 {
		return
	}
	p.dots = max(pulseWidth-int(now.Sub(p.lastSeen)/(2*time.Second)), 0)
}

func (p Pulse) Render(theme Theme) string {
	var b strings.Builder
	for i := range pulseWidth {
		if i < p.dots {
			b.WriteString(theme.PulseOn.Render("●"))
		} else {
			b.WriteString(theme.PulseOff.Render("○"))
		}
	}
	return b.String()
}
