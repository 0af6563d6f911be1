package car

// CrossLine records a start-line crossing at the given race clock and starts a new lap.
// The first crossing only starts lap 1; later ones close the running lap and return its time.
func (c *Car) CrossLine(clock float64) (lapTime float64, timed bool) {
	first := c.LastCrossing == nil
	at := clock
	c.LastCrossing = &at
	if !first {
		lapTime, timed = c.LapTime, true
		last := lapTime
		c.LastLap = &last
		if c.BestLap == nil || lapTime < *c.BestLap {
			best := lapTime
			c.BestLap = &best
		}
	}
	c.LapTime = 0
	c.Lap++
	return lapTime, timed
}
