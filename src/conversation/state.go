package conversation

import (
	"time"

	"travel_agent/src/completeness"
	"travel_agent/src/model"

	"github.com/cloudwego/eino/schema"
)

type Phase string

const (
	PhaseAwaitingName             Phase = "AWAITING_NAME"
	PhaseAwaitingCoreDetails      Phase = "AWAITING_CORE_DETAILS"
	PhaseRecommendingInitial      Phase = "RECOMMENDING_INITIAL"
	PhaseCollectingPastTrips      Phase = "COLLECTING_PAST_TRIPS"
	PhaseRecommendingPersonalized Phase = "RECOMMENDING_PERSONALIZED"
	PhaseDone                     Phase = "DONE"
)

// DialogueState is everything one session knows beyond the durable profile.
// It is owned by a single session and never shared between users.
type DialogueState struct {
	UserID       string
	Phase        Phase
	Turns        int
	Tracker      *completeness.Tracker
	Touched      map[string]bool
	LastAsked    string
	LastQuestion string
	Window       []*schema.Message
	// Returning is set when the profile already had a name at session start
	Returning bool

	LastRecommendation string
	LastDestination    string
	AwaitingFeedback   bool

	TripsCollected int
	PendingTrip    *model.TripRecord
	Reprompts      int

	StartedAt  time.Time
	name       string
	windowSize int
}

func NewDialogueState(userID string, config model.DialogueConfig) *DialogueState {
	return &DialogueState{
		UserID:     userID,
		Phase:      PhaseAwaitingName,
		Tracker:    completeness.NewTracker(config.RequiredCategories, config.MinDistinctValues, config.TurnLimit),
		Touched:    map[string]bool{},
		StartedAt:  time.Now(),
		windowSize: config.WindowMessages,
	}
}

// Missing lists the required categories not yet collected
func (s *DialogueState) Missing() []string {
	return s.Tracker.Missing()
}

// Name is the user's name as last seen in the profile
func (s *DialogueState) Name() string {
	return s.name
}

func (s *DialogueState) Done() bool {
	return s.Phase == PhaseDone
}

func (s *DialogueState) push(messages ...*schema.Message) {
	s.Window = trimTail(append(s.Window, messages...), s.windowSize)
}

// Snapshot captures what is worth keeping between processes
func (s *DialogueState) Snapshot() model.SessionSnapshot {
	return model.SessionSnapshot{
		UserID:             s.UserID,
		Window:             append([]*schema.Message(nil), s.Window...),
		LastRecommendation: s.LastRecommendation,
		SavedAt:            time.Now(),
	}
}

// Restore brings back the conversational context of an earlier session.
// Phase, turn count and completeness stay fresh.
func (s *DialogueState) Restore(snap model.SessionSnapshot) {
	s.Window = trimTail(append([]*schema.Message(nil), snap.Window...), s.windowSize)
	s.LastRecommendation = snap.LastRecommendation
}
