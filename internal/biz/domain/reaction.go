package domain

// ReactionState is the visible processing status of a message
type ReactionState string

const (
	ReactionUnmarked ReactionState = "unmarked"
	ReactionSeen     ReactionState = "seen"
	ReactionDone     ReactionState = "done"
	ReactionFailed   ReactionState = "failed"
)

// IsTerminal checks if no further transition is allowed
func (s ReactionState) IsTerminal() bool {
	return s == ReactionDone || s == ReactionFailed
}

// ReactionNames maps states to Slack emoji names
type ReactionNames struct {
	Seen   string
	Done   string
	Failed string
}

// DefaultReactionNames are the emoji used by the relay
var DefaultReactionNames = ReactionNames{
	Seen:   "eyes",
	Done:   "white_check_mark",
	Failed: "x",
}
