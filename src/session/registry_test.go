package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"travel_agent/src"
	"travel_agent/src/conversation"
	"travel_agent/src/model"
	"travel_agent/src/storage"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProfiles records which ids have a profile
type fakeProfiles struct {
	mu    sync.Mutex
	ids   map[string]bool
	taken bool
}

func newFakeProfiles(ids ...string) *fakeProfiles {
	p := &fakeProfiles{ids: map[string]bool{}}
	for _, id := range ids {
		p.ids[id] = true
	}
	return p
}

func (p *fakeProfiles) Exists(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.taken || p.ids[id]
}

func (p *fakeProfiles) Get(_ context.Context, id string) (*model.UserProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[id] = true
	return model.NewUserProfile(id, time.Now()), nil
}

func stateFactory(t *testing.T) StateFactory {
	t.Helper()
	cfg, err := src.LoadDialogueConfig("")
	require.NoError(t, err)
	return func(id string) *conversation.DialogueState {
		return conversation.NewDialogueState(id, *cfg)
	}
}

func TestMintSkipsTakenIDs(t *testing.T) {
	profiles := newFakeProfiles("100", "101")
	r := NewRegistry(profiles, nil, stateFactory(t))
	r.intn = func(int) int { return 0 }

	s, err := r.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "102", s.UserID)
	assert.True(t, profiles.Exists("102"))

	s2, err := r.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "103", s2.UserID)
}

func TestMintWrapsAround(t *testing.T) {
	profiles := newFakeProfiles("999")
	r := NewRegistry(profiles, nil, stateFactory(t))
	r.intn = func(n int) int { return n - 1 }

	s, err := r.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "100", s.UserID)
}

func TestMintExhausted(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.taken = true
	r := NewRegistry(profiles, nil, stateFactory(t))

	_, err := r.GetOrCreate(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrIDSpaceExhausted)
}

func TestGetOrCreateReturnsActiveSession(t *testing.T) {
	r := NewRegistry(newFakeProfiles(), nil, stateFactory(t))
	ctx := context.Background()

	a, err := r.GetOrCreate(ctx, "250")
	require.NoError(t, err)
	b, err := r.GetOrCreate(ctx, "250")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, []string{"250"}, r.Active())
}

func TestCreateValidatesIDs(t *testing.T) {
	r := NewRegistry(newFakeProfiles("300"), nil, stateFactory(t))
	ctx := context.Background()

	for _, id := range []string{"42", "1000", "abc", "099", "+12", ""} {
		_, err := r.Create(ctx, id)
		var ve *model.ValidationError
		assert.ErrorAs(t, err, &ve, id)
	}

	_, err := r.Create(ctx, "300")
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "already in use", ve.Reason)

	s, err := r.Create(ctx, "301")
	require.NoError(t, err)
	assert.Equal(t, "301", s.UserID)

	_, err = r.Create(ctx, "301")
	assert.Error(t, err)
}

func TestEndSnapshotsAndResumeRestores(t *testing.T) {
	snaps := NewMemorySnapshots(time.Hour)
	r := NewRegistry(newFakeProfiles(), snaps, stateFactory(t))
	ctx := context.Background()

	s, err := r.GetOrCreate(ctx, "480")
	require.NoError(t, err)
	assert.False(t, s.Restored)
	require.NoError(t, s.Exec(ctx, func(_ context.Context, st *conversation.DialogueState) error {
		st.Window = []*schema.Message{schema.UserMessage("I'm Ana"), schema.AssistantMessage("Nice to meet you!", nil)}
		st.LastRecommendation = "How about Kyoto, Japan?"
		st.Phase = conversation.PhaseCollectingPastTrips
		return nil
	}))

	require.NoError(t, r.End(ctx, "480"))
	assert.Empty(t, r.Active())

	resumed, err := r.GetOrCreate(ctx, "480")
	require.NoError(t, err)
	assert.NotSame(t, s, resumed)
	assert.True(t, resumed.Restored)
	assert.Len(t, resumed.State.Window, 2)
	assert.Equal(t, "How about Kyoto, Japan?", resumed.State.LastRecommendation)
	assert.Equal(t, conversation.PhaseAwaitingName, resumed.State.Phase)
}

func TestResumeReloadsPersistedProfile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := storage.NewStore(model.StoreConfig{BaseDir: dir}, storage.LexicalEmbedding(64))
	require.NoError(t, err)
	r := NewRegistry(store, nil, stateFactory(t))
	s, err := r.GetOrCreate(ctx, "")
	require.NoError(t, err)
	id := s.UserID

	fresh, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fresh.Version)

	facts := model.NewFacts([]string{"activities"})
	facts.Add("activities", "hiking", 0.9)
	facts.Add("activities", "diving", 0.6)
	_, err = store.Merge(ctx, id, facts)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// simulated restart
	store2, err := storage.NewStore(model.StoreConfig{BaseDir: dir}, storage.LexicalEmbedding(64))
	require.NoError(t, err)
	defer store2.Close()
	r2 := NewRegistry(store2, nil, stateFactory(t))

	_, err = r2.GetOrCreate(ctx, id)
	require.NoError(t, err)
	p, err := store2.Get(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hiking", "diving"}, p.Values("activities"))
	best, _ := p.Best("activities")
	assert.Equal(t, "hiking", best)

	_, err = r2.Create(ctx, id)
	assert.Error(t, err)
}

func TestConcurrentMintsAreUnique(t *testing.T) {
	r := NewRegistry(newFakeProfiles(), nil, stateFactory(t))
	ctx := context.Background()

	const n = 50
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.GetOrCreate(ctx, "")
			if err == nil {
				ids[i] = s.UserID
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], id)
		seen[id] = true
		n, err := strconv.Atoi(id)
		require.NoError(t, err)
		assert.True(t, n >= 100 && n <= 999)
	}
}

func TestMemorySnapshotsExpire(t *testing.T) {
	snaps := NewMemorySnapshots(time.Minute)
	now := time.Now()
	snaps.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, snaps.Save(ctx, model.SessionSnapshot{UserID: "123", LastRecommendation: "Bali"}))
	got, err := snaps.Load(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "Bali", got.LastRecommendation)

	now = now.Add(2 * time.Minute)
	_, err = snaps.Load(ctx, "123")
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))

	var ve *model.ValidationError
	assert.ErrorAs(t, snaps.Save(ctx, model.SessionSnapshot{}), &ve)
}
