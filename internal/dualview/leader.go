package dualview

// Side names one of the two panes of a comparison
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// Other returns the opposite pane
func (s Side) Other() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Leader records which pane's user interaction is authoritative
type Leader int

const (
	LeaderNone Leader = iota
	LeaderLeft
	LeaderRight
)

func (l Leader) String() string {
	switch l {
	case LeaderLeft:
		return "left"
	case LeaderRight:
		return "right"
	default:
		return "none"
	}
}

// leaderOf maps a pane to the leader state it claims on "start"
func leaderOf(s Side) Leader {
	if s == SideLeft {
		return LeaderLeft
	}
	return LeaderRight
}

// onStart is the transition for a "start" notification from side s.
// The most recent start wins, matching the pointer that is actually down.
func (l Leader) onStart(s Side) Leader {
	return leaderOf(s)
}

// onEnd is the transition for an "end" notification from either side
func (l Leader) onEnd() Leader {
	return LeaderNone
}

// leads reports whether "change" from side s should propagate
func (l Leader) leads(s Side) bool {
	return l != LeaderNone && l == leaderOf(s)
}
