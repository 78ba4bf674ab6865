// Package clock предоставляет время и дату в настроенном часовом поясе.
package clock

import (
	"fmt"
	"time"
)

// Clock выдаёт текущую дату и время суток в одном фиксированном часовом
// поясе, чтобы расчёт дедлайнов не зависел от пояса хоста.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New создаёт Clock для указанной IANA-зоны.
func New(zone string) (*Clock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", zone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// Today возвращает текущую дату в формате YYYY-MM-DD.
func (c *Clock) Today() string {
	return c.now().In(c.loc).Format("2006-01-02")
}

// NowMinutes возвращает число минут с местной полуночи, от 0 до 1439.
func (c *Clock) NowMinutes() int {
	t := c.now().In(c.loc)
	return t.Hour()*60 + t.Minute()
}
