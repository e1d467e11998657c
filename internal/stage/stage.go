// Package stage defines the fixed processing-stage sequence shown to users
// and derives the per-step display state from the active stage label.
package stage

const (
	Validating = "Validating financial statements..."
	Computing  = "Computing KPIs and deltas..."
	Embedding  = "Generating embeddings..."
	Indexing   = "Creating RAG index..."
	Narrating  = "Generating MD&A narrative..."
	Complete   = "Complete!"

	// Failed replaces the stage label when processing fails. It is not part
	// of the sequence.
	Failed = "Error processing file"
)

// sequence is the ordered list of stages. It must not be mutated.
var sequence = [...]string{Validating, Computing, Embedding, Indexing, Narrating, Complete}

// Sequence returns a copy of the ordered stage labels.
func Sequence() []string {
	out := make([]string, len(sequence))
	copy(out, sequence[:])
	return out
}

// Len is the number of stages in the sequence.
func Len() int { return len(sequence) }

// Index returns the position of label in the sequence, or -1.
func Index(label string) int {
	for i, s := range sequence {
		if s == label {
			return i
		}
	}
	return -1
}

// Percent is the progress bar width for a stage index: (index+1)/len*100.
// An index of -1 (unknown stage) yields 0.
func Percent(index int) float64 {
	if index < -1 {
		index = -1
	}
	if index >= len(sequence) {
		index = len(sequence) - 1
	}
	return float64(index+1) / float64(len(sequence)) * 100
}

// State is the display state of one step.
type State string

const (
	StateComplete State = "complete"
	StateActive   State = "active"
	StatePending  State = "pending"
)

// Step is one row of the status list.
type Step struct {
	Number     int    `json:"number"` // 1-based
	Label      string `json:"label"`
	State      State  `json:"state"`
	Emphasized bool   `json:"emphasized"` // at or before the active step
}

// Status is the rendered progress for a given stage label.
type Status struct {
	Stage   string  `json:"stage"`
	Index   int     `json:"index"`
	Steps   []Step  `json:"steps"`
	Percent float64 `json:"percent"`
}

// Build derives the status view for label. Labels outside the sequence
// render every step as pending with a 0% bar.
func Build(label string) Status {
	idx := Index(label)
	steps := make([]Step, len(sequence))
	for i, s := range sequence {
		st := StatePending
		switch {
		case i < idx:
			st = StateComplete
		case i == idx:
			st = StateActive
		}
		steps[i] = Step{
			Number:     i + 1,
			Label:      s,
			State:      st,
			Emphasized: i <= idx,
		}
	}
	return Status{
		Stage:   label,
		Index:   idx,
		Steps:   steps,
		Percent: Percent(idx),
	}
}

// Done reports how many steps are complete.
func (s Status) Done() int {
	n := 0
	for _, st := range s.Steps {
		if st.State == StateComplete {
			n++
		}
	}
	return n
}
