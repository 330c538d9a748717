package form

// ReadingHistory is the ordered list of meter readings entered since the
// form was opened. It lives only as long as the engine.
type ReadingHistory struct {
	readings []float64
}

// Append records v unless it repeats the last reading.
func (h *ReadingHistory) Append(v float64) {
	if n := len(h.readings); n > 0 && h.readings[n-1] == v {
		return
	}
	h.readings = append(h.readings, v)
}

// Previous returns the most recent reading.
func (h *ReadingHistory) Previous() (float64, bool) {
	if len(h.readings) == 0 {
		return 0, false
	}
	return h.readings[len(h.readings)-1], true
}

// All returns a copy of the readings, oldest first.
func (h *ReadingHistory) All() []float64 {
	return append([]float64(nil), h.readings...)
}

// Clear forgets every reading.
func (h *ReadingHistory) Clear() {
	h.readings = nil
}
