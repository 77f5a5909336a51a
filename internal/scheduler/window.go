package scheduler

import (
	"fmt"
	"time"

	"github.com/scmhub/calendar"
)

type State int

const (
	Dormant State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "dormant"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BusinessDays reports whether the market trades on the day containing t.
type BusinessDays interface {
	IsBusinessDay(t time.Time) bool
}

// Window is the local-time polling window: hours [OpenHour, CloseHour),
// waking at OpenHour:WakeMinute. With a Calendar, non-business days are
// dormant all day.
type Window struct {
	Location   *time.Location
	OpenHour   int
	CloseHour  int
	WakeMinute int
	Calendar   BusinessDays
}

// maxCalendarLookahead bounds the search for the next business day.
const maxCalendarLookahead = 14

func DefaultWindow(loc *time.Location) Window {
	return Window{Location: loc, OpenHour: 9, CloseHour: 16, WakeMinute: 10}
}

func (w Window) local(t time.Time) time.Time {
	if w.Location == nil {
		return t
	}
	return t.In(w.Location)
}

func (w Window) businessDay(t time.Time) bool {
	return w.Calendar == nil || w.Calendar.IsBusinessDay(t)
}

// State classifies now. Minutes are ignored: 15:59 is active, 16:00 is not.
func (w Window) State(now time.Time) State {
	local := w.local(now)
	h := local.Hour()
	if h >= w.OpenHour && h < w.CloseHour && w.businessDay(local) {
		return Active
	}
	return Dormant
}

// NextWake is the instant a dormant scheduler should re-evaluate: today at
// OpenHour:WakeMinute if that is still ahead, otherwise the next (business)
// day at that time.
func (w Window) NextWake(now time.Time) time.Time {
	local := w.local(now)
	y, m, d := local.Date()

	if local.Hour() < w.OpenHour && w.businessDay(local) {
		return time.Date(y, m, d, w.OpenHour, w.WakeMinute, 0, 0, local.Location())
	}

	next := time.Date(y, m, d+1, w.OpenHour, w.WakeMinute, 0, 0, local.Location())
	for i := 0; i < maxCalendarLookahead && !w.businessDay(next); i++ {
		y, m, d = next.Date()
		next = time.Date(y, m, d+1, w.OpenHour, w.WakeMinute, 0, 0, local.Location())
	}
	return next
}

// MarketCalendar resolves an exchange calendar by its ISO 10383 MIC, e.g.
// "xidx".
func MarketCalendar(mic string) (BusinessDays, error) {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		return nil, fmt.Errorf("no trading calendar for MIC %q", mic)
	}
	return cal, nil
}
