// Package conversation drives one travel-planning dialogue from greeting to
// personalised recommendation.
//
// The controller itself keeps no per-user state: everything a session knows
// lives in its DialogueState, and everything durable goes through Store.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"travel_agent/src/llm"
	"travel_agent/src/llm/recommend"
	"travel_agent/src/logger"
	"travel_agent/src/model"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"
)

// Store is the part of the profile store a dialogue writes to
type Store interface {
	Get(ctx context.Context, userID string) (*model.UserProfile, error)
	Merge(ctx context.Context, userID string, facts model.Facts) (*model.UserProfile, error)
	Remember(ctx context.Context, userID, kind, text string) error
	AppendTrip(ctx context.Context, userID string, trip model.TripRecord) (int64, error)
	PastDestinations(ctx context.Context, userID string) ([]string, error)
	LogRecommendation(ctx context.Context, userID string, rec model.RecommendationLog) error
	LogFeedback(ctx context.Context, userID string, fb model.Feedback) error
}

type Extractor interface {
	Extract(ctx context.Context, utterance string, categories []string) model.Facts
	ExtractTrip(ctx context.Context, utterance string) model.TripFacts
}

type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Recommendation, error)
}

// Reply is what the user sees after a turn
type Reply struct {
	Text  string
	Phase Phase
	Done  bool
}

type Controller struct {
	store       Store
	extractor   Extractor
	recommender Recommender
	oracle      llm.Oracle
	config      model.DialogueConfig
	strategy    ContextStrategy
	questions   prompt.ChatTemplate
	expected    []string
	exit        map[string]bool
}

func NewController(store Store, extractor Extractor, recommender Recommender, oracle llm.Oracle, config model.DialogueConfig) *Controller {
	exit := make(map[string]bool, len(config.ExitPhrases))
	for _, p := range config.ExitPhrases {
		exit[normalizeCommand(p)] = true
	}
	return &Controller{
		store:       store,
		extractor:   extractor,
		recommender: recommender,
		oracle:      oracle,
		config:      config,
		strategy:    NewWindowStrategy(config.WindowMessages),
		questions:   createQuestionTemplate(),
		expected:    config.ExpectedCategories(),
		exit:        exit,
	}
}

func (c *Controller) NewState(userID string) *DialogueState {
	return NewDialogueState(userID, c.config)
}

// Start opens the dialogue. Returning users are greeted by name and skip the
// name question.
func (c *Controller) Start(ctx context.Context, st *DialogueState) (Reply, error) {
	profile, err := c.store.Get(ctx, st.UserID)
	if err != nil {
		return Reply{Text: apology, Phase: st.Phase}, err
	}
	st.Tracker.ObserveProfile(profile)

	name := profile.Name()
	if name == "" {
		st.Phase = PhaseAwaitingName
		st.LastAsked = model.CategoryName
		st.Tracker.MarkAsked(model.CategoryName)
		return c.finish(st, "", Reply{Text: greeting}), nil
	}

	st.Returning = true
	st.name = name
	st.Tracker.MarkAnswered(model.CategoryName)
	welcome := fmt.Sprintf("Welcome back, %s! ", name)
	logger.Info().Str("user_id", st.UserID).Int("facts", profile.FactCount()).Msg("returning user")

	if st.Tracker.IsComplete() {
		st.Phase = PhaseRecommendingInitial
		reply, err := c.recommendStep(ctx, st, profile, welcome, false)
		if err != nil {
			return Reply{Text: apology, Phase: st.Phase}, err
		}
		return c.finish(st, "", reply), nil
	}

	st.Phase = PhaseAwaitingCoreDetails
	next, _ := st.Tracker.NextMissing(c.config.Priorities)
	st.LastAsked = next
	st.Tracker.MarkAsked(next)
	return c.finish(st, "", Reply{Text: welcome + c.config.Question(next)}), nil
}

// HandleTurn consumes one user utterance. A storage failure aborts the turn:
// the returned error is non-nil, the reply carries an apology and the
// exchange is not added to the window.
func (c *Controller) HandleTurn(ctx context.Context, st *DialogueState, utterance string) (Reply, error) {
	utterance = strings.TrimSpace(utterance)
	if st.Phase == PhaseDone {
		return Reply{Text: closingMessage(c.name(ctx, st), st.UserID), Phase: PhaseDone, Done: true}, nil
	}

	st.Turns++
	st.Tracker.Tick()

	if c.isExit(utterance) {
		st.Phase = PhaseDone
		logger.Info().Str("user_id", st.UserID).Int("turns", st.Turns).Msg("user ended the dialogue")
		return c.finish(st, utterance, Reply{Text: closingMessage(c.name(ctx, st), st.UserID)}), nil
	}
	if utterance == "" {
		return Reply{Text: "Sorry, I didn't catch that. " + st.LastQuestion, Phase: st.Phase}, nil
	}

	var (
		reply Reply
		err   error
	)
	switch st.Phase {
	case PhaseAwaitingName:
		reply, err = c.handleName(ctx, st, utterance)
	case PhaseAwaitingCoreDetails:
		reply, err = c.handleCoreDetails(ctx, st, utterance)
	case PhaseRecommendingInitial:
		reply, err = c.handleTripContext(ctx, st, utterance, false)
	case PhaseCollectingPastTrips:
		reply, err = c.handlePastTrip(ctx, st, utterance)
	case PhaseRecommendingPersonalized:
		if st.AwaitingFeedback {
			reply, err = c.handleFeedback(ctx, st, utterance)
		} else {
			reply, err = c.handleTripContext(ctx, st, utterance, true)
		}
	default:
		err = fmt.Errorf("conversation: unknown phase %q", st.Phase)
	}
	if err != nil {
		logger.Error().Err(err).Str("user_id", st.UserID).Str("phase", string(st.Phase)).Msg("turn aborted")
		return Reply{Text: apology, Phase: st.Phase}, err
	}
	return c.finish(st, utterance, reply), nil
}

func (c *Controller) handleName(ctx context.Context, st *DialogueState, utterance string) (Reply, error) {
	facts := c.extractor.Extract(ctx, utterance, c.expected)
	name, ok := facts.Best(model.CategoryName)
	if !ok {
		candidate := nameFromRaw(utterance)
		if candidate == "" || len(strings.Fields(candidate)) > 4 {
			if st.Reprompts < c.config.MaxReprompts {
				st.Reprompts++
				return Reply{Text: "Sorry, I didn't catch your name. What should I call you?"}, nil
			}
			logger.Warn().Err(&model.InputAmbiguityError{Field: model.CategoryName, Attempts: st.Reprompts}).
				Str("user_id", st.UserID).Msg("using first words as name")
			candidate = strings.Join(lo.Slice(strings.Fields(utterance), 0, 2), " ")
		}
		name = candidate
		facts.Add(model.CategoryName, name, 1.0)
	}

	profile, err := c.merge(ctx, st, facts)
	if err != nil {
		return Reply{}, err
	}
	st.Reprompts = 0
	st.Tracker.MarkAnswered(model.CategoryName)
	st.Phase = PhaseAwaitingCoreDetails
	return c.advanceCore(ctx, st, profile, utterance, fmt.Sprintf("Nice to meet you, %s!", name))
}

func (c *Controller) handleCoreDetails(ctx context.Context, st *DialogueState, utterance string) (Reply, error) {
	facts := c.extractor.Extract(ctx, utterance, c.expected)
	profile, err := c.merge(ctx, st, facts)
	if err != nil {
		return Reply{}, err
	}
	return c.advanceCore(ctx, st, profile, utterance, "Got it.")
}

// advanceCore asks the next missing question or moves on to the first
// recommendation once the tracker reports completion.
func (c *Controller) advanceCore(ctx context.Context, st *DialogueState, profile *model.UserProfile, utterance, ack string) (Reply, error) {
	if st.Tracker.IsComplete() {
		if st.Tracker.LimitReached() && !st.Tracker.AllCollected() {
			logger.Info().Str("user_id", st.UserID).Strs("missing", st.Missing()).Msg("turn limit reached, moving on")
		}
		st.Phase = PhaseRecommendingInitial
		st.LastAsked = ""
		return c.recommendStep(ctx, st, profile, "Thanks, I have a good picture of how you like to travel. ", false)
	}

	next, _ := st.Tracker.NextMissing(c.config.Priorities)
	st.Tracker.MarkAsked(next)
	st.LastAsked = next
	return Reply{Text: c.ask(ctx, st, profile, next, utterance, ack)}, nil
}

// handleTripContext collects budget, companions and travel time until a
// recommendation can be made.
func (c *Controller) handleTripContext(ctx context.Context, st *DialogueState, utterance string, personalized bool) (Reply, error) {
	facts := c.extractor.Extract(ctx, utterance, c.expected)
	profile, err := c.merge(ctx, st, facts)
	if err != nil {
		return Reply{}, err
	}
	return c.recommendStep(ctx, st, profile, "", personalized)
}

func (c *Controller) recommendStep(ctx context.Context, st *DialogueState, profile *model.UserProfile, prefix string, personalized bool) (Reply, error) {
	past, err := c.store.PastDestinations(ctx, st.UserID)
	if err != nil {
		return Reply{}, err
	}
	exclude := past
	if st.LastDestination != "" && !model.ContainsDestination(exclude, st.LastDestination) {
		exclude = append(exclude, st.LastDestination)
	}

	trip := model.TripContextFromProfile(profile)
	rec, err := c.recommender.Recommend(ctx, recommend.Request{
		Profile:      profile,
		Trip:         trip,
		Exclude:      exclude,
		History:      st.Window,
		Previous:     st.LastRecommendation,
		Personalized: personalized,
	})

	var missing *model.MissingInfoError
	if errors.As(err, &missing) {
		if st.Reprompts < c.config.MaxReprompts {
			st.Reprompts++
			return Reply{Text: prefix + tripDetailsQuestion(missing.Fields)}, nil
		}
		logger.Warn().Err(&model.InputAmbiguityError{Field: strings.Join(missing.Fields, ","), Attempts: st.Reprompts}).
			Str("user_id", st.UserID).Msg("skipping recommendation")
		st.Reprompts = 0
		text := prefix + "No problem, we can come back to that another time."
		if personalized {
			st.Phase = PhaseDone
			return Reply{Text: text + " " + closingMessage(st.Name(), st.UserID)}, nil
		}
		return c.afterRecommendation(st, text, false, false), nil
	}
	if err != nil {
		return Reply{}, err
	}
	st.Reprompts = 0

	if rec.Destination != "" {
		err := c.store.LogRecommendation(ctx, st.UserID, model.RecommendationLog{
			Destination: rec.Destination,
			Alternative: rec.Alternative,
			Rationale:   rec.Rationale,
			Trip:        trip,
			Personal:    personalized,
			CreatedAt:   time.Now(),
		})
		if err != nil {
			return Reply{}, err
		}
		st.LastRecommendation = rec.Text
		st.LastDestination = rec.Destination
		logger.Info().Str("user_id", st.UserID).Str("destination", rec.Destination).
			Bool("personalized", personalized).Bool("fallback", rec.Fallback).Msg("recommendation made")
	}
	return c.afterRecommendation(st, prefix+rec.Text, personalized, rec.Destination != ""), nil
}

// afterRecommendation picks the next phase. made reports whether a
// destination was actually suggested.
func (c *Controller) afterRecommendation(st *DialogueState, text string, personalized, made bool) Reply {
	if personalized || c.config.TripsToCollect <= 0 {
		if !made {
			st.Phase = PhaseDone
			return Reply{Text: text + " " + closingMessage(st.Name(), st.UserID)}
		}
		st.Phase = PhaseRecommendingPersonalized
		st.AwaitingFeedback = true
		return Reply{Text: text + " What do you think of this suggestion?"}
	}
	st.Phase = PhaseCollectingPastTrips
	return Reply{Text: text + " " + tripQuestion(st.TripsCollected)}
}

func (c *Controller) handlePastTrip(ctx context.Context, st *DialogueState, utterance string) (Reply, error) {
	pending := model.TripRecord{CreatedAt: time.Now()}
	if st.PendingTrip != nil {
		pending = *st.PendingTrip
		pending.Activities = append([]string(nil), pending.Activities...)
		pending.Utterances = append([]string(nil), pending.Utterances...)
	}
	pending.Utterances = append(pending.Utterances, utterance)

	trip := c.extractor.ExtractTrip(ctx, utterance)
	facts := c.extractor.Extract(ctx, utterance, c.expected)
	profile, err := c.merge(ctx, st, facts)
	if err != nil {
		return Reply{}, err
	}

	pending.Activities = lo.Uniq(append(pending.Activities, trip.Activities...))
	if trip.Destination != "" {
		pending.Destination = trip.Destination
	}
	if pending.Destination == "" {
		if st.Reprompts < c.config.MaxReprompts {
			st.Reprompts++
			st.PendingTrip = &pending
			return Reply{Text: destinationReprompt}, nil
		}
		logger.Warn().Err(&model.InputAmbiguityError{Field: "destination", Attempts: st.Reprompts}).
			Str("user_id", st.UserID).Msg("recording trip without destination")
	}

	if pending.ID == 0 {
		id, err := c.store.AppendTrip(ctx, st.UserID, pending)
		if err != nil {
			return Reply{}, err
		}
		// stored; a retried turn only has the feedback left to write
		pending.ID = id
		st.PendingTrip = &pending
	}
	if len(trip.Liked) > 0 || len(trip.Disliked) > 0 {
		err := c.store.LogFeedback(ctx, st.UserID, model.Feedback{
			Destination: pending.Destination,
			Preferred:   trip.Liked,
			Hated:       trip.Disliked,
			Comment:     utterance,
			CreatedAt:   time.Now(),
		})
		if err != nil {
			return Reply{}, err
		}
	}
	c.remember(ctx, st, "trip", tripMemory(pending, trip))

	st.PendingTrip = nil
	st.Reprompts = 0
	st.TripsCollected++
	if st.TripsCollected < c.config.TripsToCollect {
		return Reply{Text: tripQuestion(st.TripsCollected)}, nil
	}
	st.Phase = PhaseRecommendingPersonalized
	return c.recommendStep(ctx, st, profile, "Thanks for sharing your trips! Based on everything you've told me: ", true)
}

func (c *Controller) handleFeedback(ctx context.Context, st *DialogueState, utterance string) (Reply, error) {
	tf := c.extractor.ExtractTrip(ctx, utterance)
	err := c.store.LogFeedback(ctx, st.UserID, model.Feedback{
		Destination: st.LastDestination,
		Preferred:   tf.Liked,
		Hated:       tf.Disliked,
		Comment:     utterance,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return Reply{}, err
	}
	c.remember(ctx, st, "feedback", fmt.Sprintf("feedback on %s: %s", st.LastDestination, utterance))

	st.AwaitingFeedback = false
	st.Phase = PhaseDone
	return Reply{Text: "Thanks for the feedback! " + closingMessage(st.Name(), st.UserID)}, nil
}

// merge persists facts and updates completeness. Answers to the question that
// was just asked count as a direct answer for that category.
func (c *Controller) merge(ctx context.Context, st *DialogueState, facts model.Facts) (*model.UserProfile, error) {
	var (
		profile *model.UserProfile
		err     error
	)
	if facts.Empty() {
		profile, err = c.store.Get(ctx, st.UserID)
	} else {
		profile, err = c.store.Merge(ctx, st.UserID, facts)
	}
	if err != nil {
		return nil, err
	}

	for _, cat := range facts.Touched() {
		st.Touched[cat] = true
	}
	logger.Debug().Str("user_id", st.UserID).Strs("touched", facts.Touched()).
		Int("categories_touched", len(st.Touched)).Msg("facts merged")
	if st.LastAsked != "" && len(facts[st.LastAsked]) > 0 {
		st.Tracker.MarkAnswered(st.LastAsked)
	}
	st.Tracker.ObserveProfile(profile)
	st.name = profile.Name()
	return profile, nil
}

// ask phrases the question for category through the oracle, falling back to
// the canned question when the oracle is unavailable.
func (c *Controller) ask(ctx context.Context, st *DialogueState, profile *model.UserProfile, category, utterance, ack string) string {
	canned := ack + " " + c.config.Question(category)
	guidance := c.config.Guidance[category]
	if guidance == "" {
		guidance = "Ask: " + c.config.Question(category)
	}

	name := profile.Name()
	if name == "" {
		name = "the traveller"
	}
	messages, err := c.questions.Format(ctx, map[string]any{
		"name":         name,
		"profile":      strings.TrimRight(profile.Summary(c.config.RequiredCategories), "\n"),
		"conversation": c.strategy.BuildContext(st.Window),
		"guidance":     guidance,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("question prompt formatting failed")
		return canned
	}

	text, err := c.oracle.Complete(ctx, messages[0].Content, []*schema.Message{schema.UserMessage(utterance)})
	if err != nil {
		logger.Warn().Err(err).Str("user_id", st.UserID).Str("category", category).Msg("question generation failed, using canned question")
		return canned
	}
	text = recommend.FirstSentences(text, 3)
	if text == "" {
		return canned
	}
	return text
}

func (c *Controller) remember(ctx context.Context, st *DialogueState, kind, text string) {
	if err := c.store.Remember(ctx, st.UserID, kind, text); err != nil {
		logger.Warn().Err(err).Str("user_id", st.UserID).Str("kind", kind).Msg("memory index failed")
	}
}

// finish records the exchange in the rolling window and stamps the reply
func (c *Controller) finish(st *DialogueState, utterance string, reply Reply) Reply {
	if utterance != "" {
		st.push(schema.UserMessage(utterance))
	}
	st.push(schema.AssistantMessage(reply.Text, nil))
	st.LastQuestion = reply.Text
	reply.Phase = st.Phase
	reply.Done = st.Phase == PhaseDone
	if reply.Done {
		touched := lo.Keys(st.Touched)
		slices.Sort(touched)
		logger.Info().Str("user_id", st.UserID).Bool("returning", st.Returning).Int("turns", st.Turns).
			Strs("touched", touched).Dur("elapsed", time.Since(st.StartedAt)).Msg("dialogue finished")
	}
	return reply
}

func (c *Controller) name(ctx context.Context, st *DialogueState) string {
	if st.name != "" {
		return st.name
	}
	if profile, err := c.store.Get(ctx, st.UserID); err == nil {
		st.name = profile.Name()
	}
	return st.name
}

func (c *Controller) isExit(utterance string) bool {
	return c.exit[normalizeCommand(utterance)]
}

func normalizeCommand(s string) string {
	return strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
}

var namePrefixes = []string{"my name is ", "my name's ", "i'm ", "i am ", "im ", "call me ", "it's ", "its "}

// nameFromRaw treats a short answer to the name question as the name itself
func nameFromRaw(utterance string) string {
	s := strings.TrimFunc(utterance, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	lower := strings.ToLower(s)
	for _, p := range namePrefixes {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	return s
}

func tripMemory(rec model.TripRecord, facts model.TripFacts) string {
	var b strings.Builder
	dest := rec.Destination
	if dest == "" {
		dest = "an unnamed place"
	}
	b.WriteString("past trip to " + dest)
	if len(rec.Activities) > 0 {
		b.WriteString("; activities: " + strings.Join(rec.Activities, ", "))
	}
	if len(facts.Liked) > 0 {
		b.WriteString("; liked: " + strings.Join(facts.Liked, ", "))
	}
	if len(facts.Disliked) > 0 {
		b.WriteString("; disliked: " + strings.Join(facts.Disliked, ", "))
	}
	return b.String()
}
