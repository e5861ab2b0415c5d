package train

import "math"

// earlyStopper counts consecutive epochs without a strict improvement of the
// monitored value.
type earlyStopper struct {
	patience int
	best     float64
	wait     int
}

func newEarlyStopper(patience int) *earlyStopper {
	return &earlyStopper{patience: patience, best: math.Inf(1)}
}

// observe records one epoch's value and reports whether training must stop.
func (e *earlyStopper) observe(v float64) bool {
	if v < e.best {
		e.best = v
		e.wait = 0
		return false
	}
	e.wait++
	return e.wait >= e.patience
}
