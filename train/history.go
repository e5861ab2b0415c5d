package train

// EpochRecord is appended to the history after every epoch. ValLoss and
// ValAccuracy are nil when no validation set was supplied.
type EpochRecord struct {
	Epoch       int      `json:"epoch"`
	Loss        float64  `json:"loss"`
	Accuracy    float64  `json:"accuracy"`
	ValLoss     *float64 `json:"valLoss,omitempty"`
	ValAccuracy *float64 `json:"valAccuracy,omitempty"`
	Anomalies   int      `json:"anomalies,omitempty"`
}

// History is the ordered list of epoch records of one training run.
type History struct {
	Records      []EpochRecord `json:"records"`
	StoppedEarly bool          `json:"stoppedEarly"`
	Canceled     bool          `json:"canceled"`
}

// Len is the number of completed epochs.
func (h *History) Len() int { return len(h.Records) }

// Loss returns the per-epoch training loss series.
func (h *History) Loss() []float64 {
	out := make([]float64, len(h.Records))
	for i, r := range h.Records {
		out[i] = r.Loss
	}
	return out
}

// Accuracy returns the per-epoch training accuracy series.
func (h *History) Accuracy() []float64 {
	out := make([]float64, len(h.Records))
	for i, r := range h.Records {
		out[i] = r.Accuracy
	}
	return out
}

// ValLoss returns the validation loss series, skipping epochs without one.
func (h *History) ValLoss() []float64 {
	var out []float64
	for _, r := range h.Records {
		if r.ValLoss != nil {
			out = append(out, *r.ValLoss)
		}
	}
	return out
}

// Last returns the most recent record, or false for an empty history.
func (h *History) Last() (EpochRecord, bool) {
	if len(h.Records) == 0 {
		return EpochRecord{}, false
	}
	return h.Records[len(h.Records)-1], true
}

// ScalarLabels wraps scalar targets into the length-1 vectors Train expects.
func ScalarLabels(ys []float64) [][]float64 {
	out := make([][]float64, len(ys))
	for i, y := range ys {
		out[i] = []float64{y}
	}
	return out
}
