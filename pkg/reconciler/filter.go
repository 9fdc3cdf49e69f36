package reconciler

// filter drops events reconciliation cannot track, and repeats of an event
// already seen in the same collection during this pass.
type filter struct {
	seen map[string]struct{}
}

func newFilter() *filter {
	return &filter{seen: make(map[string]struct{})}
}

// accept reports whether ev should be processed, and why not otherwise.
func (f *filter) accept(ev Event) (bool, string) {
	if ev.ID == "" {
		return false, "event has no id"
	}
	key := ev.CollectionID + "\x00" + ev.ID
	if _, dup := f.seen[key]; dup {
		return false, "event listed twice"
	}
	f.seen[key] = struct{}{}
	return true, ""
}
