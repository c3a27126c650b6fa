package crawler

// State is a step of the sub-region crawl.
type State int

// Sub-region crawl states. Every crawl starts at StateStart and ends at StateDone.
// StateEmpty and StateFailed are terminal detours before StateDone.
const (
	StateStart State = iota
	StateFetchFirstPage
	StateEmpty
	StateBuildPageSet
	StateDispatch
	StateMerge
	StateFailed
	StateDone
)

var stateNames = map[State]string{
	StateStart:          "start",
	StateFetchFirstPage: "fetch_first_page",
	StateEmpty:          "empty",
	StateBuildPageSet:   "build_page_set",
	StateDispatch:       "dispatch",
	StateMerge:          "merge",
	StateFailed:         "failed",
	StateDone:           "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
