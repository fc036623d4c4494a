package conversation

import (
	"context"
	"errors"
	"testing"

	"travel_agent/src"
	"travel_agent/src/llm"
	"travel_agent/src/llm/llmtest"
	"travel_agent/src/llm/recommend"
	"travel_agent/src/model"
	"travel_agent/src/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedExtractor answers from fixed tables keyed by utterance
type scriptedExtractor struct {
	facts map[string]map[string]map[string]float64
	trips map[string]model.TripFacts
}

func (e *scriptedExtractor) Extract(_ context.Context, utterance string, categories []string) model.Facts {
	out := model.NewFacts(categories)
	for cat, values := range e.facts[utterance] {
		for v, c := range values {
			out.Add(cat, v, c)
		}
	}
	return out
}

func (e *scriptedExtractor) ExtractTrip(_ context.Context, utterance string) model.TripFacts {
	return e.trips[utterance]
}

// brokenStore fails every profile merge
type brokenStore struct {
	*storage.Store
}

func (b brokenStore) Merge(context.Context, string, model.Facts) (*model.UserProfile, error) {
	return nil, &model.StorageError{Op: "merge", Err: errors.New("disk full")}
}

// flakyFeedbackStore fails the first feedback write only
type flakyFeedbackStore struct {
	*storage.Store
	failed bool
}

func (s *flakyFeedbackStore) LogFeedback(ctx context.Context, userID string, fb model.Feedback) error {
	if !s.failed {
		s.failed = true
		return &model.StorageError{Op: "log feedback", Err: errors.New("database is locked")}
	}
	return s.Store.LogFeedback(ctx, userID, fb)
}

type fixture struct {
	ctrl  *Controller
	store *storage.Store
	cfg   model.DialogueConfig
}

func newFixture(t *testing.T, ex Extractor, oracle llm.Oracle, tweak func(*model.DialogueConfig)) *fixture {
	t.Helper()
	cfg, err := src.LoadDialogueConfig("")
	require.NoError(t, err)
	if tweak != nil {
		tweak(cfg)
	}
	store, err := storage.NewStore(model.StoreConfig{BaseDir: t.TempDir()}, storage.LexicalEmbedding(64))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gen := recommend.NewGenerator(llmtest.Failing{}, store, *cfg)
	return &fixture{
		ctrl:  NewController(store, ex, gen, oracle, *cfg),
		store: store,
		cfg:   *cfg,
	}
}

func (f *fixture) say(t *testing.T, st *DialogueState, utterance string) Reply {
	t.Helper()
	reply, err := f.ctrl.HandleTurn(context.Background(), st, utterance)
	require.NoError(t, err)
	return reply
}

func happyExtractor() *scriptedExtractor {
	return &scriptedExtractor{
		facts: map[string]map[string]map[string]float64{
			"I love hiking and surfing":        {"activities": {"hiking": 0.9, "surfing": 0.8}},
			"Slow and cultural please":         {"travel_style": {"relaxed": 0.8, "cultural": 0.9}},
			"Somewhere warm, tropical ideally": {"climate_preference": {"tropical": 0.9}},
			"Mid-range usually":                {"budget_level": {"moderate": 0.8}},
			"About 2000 euros, with my partner, in July": {
				"budget":      {"2000 euros": 0.9},
				"companions":  {"partner": 0.9},
				"travel_time": {"July": 0.9},
			},
		},
		trips: map[string]model.TripFacts{
			"We went to Lisbon, Portugal and loved the food": {
				Destination: "Lisbon, Portugal",
				Activities:  []string{"eating"},
				Liked:       []string{"food"},
			},
			"Cusco, Peru for hiking, but the altitude was rough": {
				Destination: "Cusco, Peru",
				Activities:  []string{"hiking"},
				Disliked:    []string{"altitude"},
			},
			"Loved it, but it is a bit far": {Liked: []string{"the idea"}, Disliked: []string{"distance"}},
		},
	}
}

func TestFullDialogue(t *testing.T) {
	f := newFixture(t, happyExtractor(), llmtest.Failing{}, nil)
	ctx := context.Background()
	st := f.ctrl.NewState("412")

	reply, err := f.ctrl.Start(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingName, reply.Phase)
	assert.Contains(t, reply.Text, "What's your name?")

	reply = f.say(t, st, "I'm Ana")
	assert.Equal(t, PhaseAwaitingCoreDetails, reply.Phase)
	assert.Contains(t, reply.Text, "Nice to meet you, Ana!")
	assert.Contains(t, reply.Text, f.cfg.Question("activities"))

	f.say(t, st, "I love hiking and surfing")
	f.say(t, st, "Slow and cultural please")
	f.say(t, st, "Somewhere warm, tropical ideally")
	reply = f.say(t, st, "Mid-range usually")
	assert.Equal(t, PhaseRecommendingInitial, reply.Phase)
	assert.Contains(t, reply.Text, "Before I suggest somewhere")
	assert.Empty(t, st.Missing())

	reply = f.say(t, st, "About 2000 euros, with my partner, in July")
	assert.Equal(t, PhaseCollectingPastTrips, reply.Phase)
	assert.Contains(t, reply.Text, "How about")
	first := st.LastDestination
	require.NotEmpty(t, first)

	reply = f.say(t, st, "We went to Lisbon, Portugal and loved the food")
	assert.Equal(t, PhaseCollectingPastTrips, reply.Phase)
	assert.Equal(t, 1, st.TripsCollected)

	reply = f.say(t, st, "Cusco, Peru for hiking, but the altitude was rough")
	assert.Equal(t, PhaseRecommendingPersonalized, reply.Phase)
	assert.True(t, st.AwaitingFeedback)
	second := st.LastDestination
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)
	assert.False(t, model.ContainsDestination([]string{"Lisbon, Portugal", "Cusco, Peru"}, second))

	assert.False(t, st.Returning)
	assert.True(t, st.Touched["activities"])
	assert.True(t, st.Touched["budget"])

	reply = f.say(t, st, "Loved it, but it is a bit far")
	assert.True(t, reply.Done)
	assert.Equal(t, PhaseDone, reply.Phase)
	assert.Contains(t, reply.Text, "412")
	assert.Contains(t, reply.Text, "--user-id 412")

	trips, err := f.store.Trips(ctx, "412")
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, "Lisbon, Portugal", trips[0].Destination)

	recs, err := f.store.Recommendations(ctx, "412", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Personal)
	assert.Equal(t, "partner", recs[0].Trip.Companions)

	fb, err := f.store.Feedback(ctx, "412")
	require.NoError(t, err)
	assert.Len(t, fb, 3)

	profile, err := f.store.Get(ctx, "412")
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.Name())
	assert.Equal(t, 2, profile.Count("activities"))
}

func TestExitPhraseEndsDialogue(t *testing.T) {
	f := newFixture(t, happyExtractor(), llmtest.Failing{}, nil)
	st := f.ctrl.NewState("501")
	_, err := f.ctrl.Start(context.Background(), st)
	require.NoError(t, err)

	reply := f.say(t, st, "  Bye! ")
	assert.True(t, reply.Done)
	assert.Contains(t, reply.Text, "--user-id 501")

	again := f.say(t, st, "hello?")
	assert.True(t, again.Done)
}

func TestStorageFailureAbortsTurn(t *testing.T) {
	cfg, err := src.LoadDialogueConfig("")
	require.NoError(t, err)
	store, err := storage.NewStore(model.StoreConfig{BaseDir: t.TempDir()}, storage.LexicalEmbedding(64))
	require.NoError(t, err)
	defer store.Close()

	broken := brokenStore{Store: store}
	ctrl := NewController(broken, happyExtractor(), recommend.NewGenerator(llmtest.Failing{}, store, *cfg), llmtest.Failing{}, *cfg)
	st := ctrl.NewState("777")
	_, err = ctrl.Start(context.Background(), st)
	require.NoError(t, err)
	window := len(st.Window)

	reply, err := ctrl.HandleTurn(context.Background(), st, "I'm Ana")
	require.Error(t, err)
	var se *model.StorageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, apology, reply.Text)
	assert.Equal(t, PhaseAwaitingName, st.Phase)
	assert.Len(t, st.Window, window)
}

func TestReturningUserIsGreetedByName(t *testing.T) {
	f := newFixture(t, happyExtractor(), llmtest.Failing{}, nil)
	ctx := context.Background()
	name := model.NewFacts([]string{"name"})
	name.Add("name", "Ana", 1)
	_, err := f.store.Merge(ctx, "300", name)
	require.NoError(t, err)

	st := f.ctrl.NewState("300")
	reply, err := f.ctrl.Start(ctx, st)
	require.NoError(t, err)
	assert.True(t, st.Returning)
	assert.Equal(t, PhaseAwaitingCoreDetails, reply.Phase)
	assert.Contains(t, reply.Text, "Welcome back, Ana!")
	assert.Equal(t, "activities", st.LastAsked)
}

func TestTripWithoutDestinationIsReprompted(t *testing.T) {
	ex := happyExtractor()
	ex.trips["Kyoto, Japan"] = model.TripFacts{Destination: "Kyoto, Japan"}
	f := newFixture(t, ex, llmtest.Failing{}, nil)
	ctx := context.Background()

	st := f.ctrl.NewState("640")
	_, err := f.ctrl.Start(ctx, st)
	require.NoError(t, err)
	st.Phase = PhaseCollectingPastTrips

	reply := f.say(t, st, "It was lovely, lots of temples")
	assert.Equal(t, destinationReprompt, reply.Text)
	assert.Equal(t, 0, st.TripsCollected)

	f.say(t, st, "Kyoto, Japan")
	assert.Equal(t, 1, st.TripsCollected)
	assert.Nil(t, st.PendingTrip)

	trips, err := f.store.Trips(ctx, "640")
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "Kyoto, Japan", trips[0].Destination)
	assert.Len(t, trips[0].Utterances, 2)
}

func TestQuestionsComeFromOracle(t *testing.T) {
	oracle := llmtest.NewScriptedOracle(llmtest.Texts("Lovely to meet you, Ana! What do you enjoy doing on trips? Anything else? Extra sentence.")...)
	f := newFixture(t, happyExtractor(), oracle, nil)
	st := f.ctrl.NewState("118")
	_, err := f.ctrl.Start(context.Background(), st)
	require.NoError(t, err)

	reply := f.say(t, st, "Ana")
	assert.Equal(t, "Lovely to meet you, Ana! What do you enjoy doing on trips? Anything else?", reply.Text)
	require.Equal(t, 1, oracle.CallCount())
	assert.Contains(t, oracle.Calls[0].System, "Ana")
	assert.Contains(t, oracle.Calls[0].System, "<conversation_context>")
}

func TestTurnLimitForcesRecommendation(t *testing.T) {
	f := newFixture(t, happyExtractor(), llmtest.Failing{}, func(c *model.DialogueConfig) { c.TurnLimit = 3 })
	st := f.ctrl.NewState("222")
	_, err := f.ctrl.Start(context.Background(), st)
	require.NoError(t, err)

	f.say(t, st, "Ana")
	f.say(t, st, "hmm")
	reply := f.say(t, st, "not sure")
	assert.Equal(t, PhaseRecommendingInitial, reply.Phase)
	assert.NotEmpty(t, st.Missing())
}

func TestLongUnclearNameIsReprompted(t *testing.T) {
	f := newFixture(t, happyExtractor(), llmtest.Failing{}, nil)
	st := f.ctrl.NewState("333")
	_, err := f.ctrl.Start(context.Background(), st)
	require.NoError(t, err)

	reply := f.say(t, st, "well I would rather not say that right now")
	assert.Equal(t, PhaseAwaitingName, reply.Phase)
	assert.Contains(t, reply.Text, "didn't catch your name")
}

func TestRetriedTripTurnStoresTripOnce(t *testing.T) {
	cfg, err := src.LoadDialogueConfig("")
	require.NoError(t, err)
	store, err := storage.NewStore(model.StoreConfig{BaseDir: t.TempDir()}, storage.LexicalEmbedding(64))
	require.NoError(t, err)
	defer store.Close()

	flaky := &flakyFeedbackStore{Store: store}
	ctrl := NewController(flaky, happyExtractor(), recommend.NewGenerator(llmtest.Failing{}, store, *cfg), llmtest.Failing{}, *cfg)
	ctx := context.Background()
	st := ctrl.NewState("845")
	_, err = ctrl.Start(ctx, st)
	require.NoError(t, err)
	st.Phase = PhaseCollectingPastTrips

	utterance := "We went to Lisbon, Portugal and loved the food"
	reply, err := ctrl.HandleTurn(ctx, st, utterance)
	var se *model.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, apology, reply.Text)
	assert.Equal(t, 0, st.TripsCollected)

	_, err = ctrl.HandleTurn(ctx, st, utterance)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TripsCollected)
	assert.Nil(t, st.PendingTrip)

	trips, err := store.Trips(ctx, "845")
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "Lisbon, Portugal", trips[0].Destination)

	fb, err := store.Feedback(ctx, "845")
	require.NoError(t, err)
	assert.Len(t, fb, 1)
}
