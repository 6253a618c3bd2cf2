package domain

// ObserverView is the complete set of information the observer evaluator may
// see for one interaction: what was said, what was answered, and what an
// outside party could perceive changing. It is built only from those three
// fields; hidden intent, memory content, and unobservable device values have
// no representation here, so they cannot cross the boundary by serialization.
type ObserverView struct {
	Command           string `json:"command"`
	Reply             string `json:"reply"`
	ObservableChanges string `json:"observable_changes"`
}

// NewObserverView extracts the observer-visible slice of a record. The
// record's StateChangeDesc is already filtered to observable properties by
// Environment.DescribeObservableChanges at response time.
func NewObserverView(r *InteractionRecord) ObserverView {
	return ObserverView{
		Command:           r.Command,
		Reply:             r.Reply,
		ObservableChanges: r.StateChangeDesc,
	}
}
