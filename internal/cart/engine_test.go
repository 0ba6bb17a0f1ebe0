package cart_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/robertarktes/studio-booking-cart/internal/cart"
	"github.com/robertarktes/studio-booking-cart/internal/cart/carttest"
	"github.com/robertarktes/studio-booking-cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type engineSuite struct {
	suite.Suite

	fx *carttest.Fixture
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(engineSuite))
}

func (s *engineSuite) SetupTest() {
	s.fx = carttest.New(s.T(), nil)
}

func strPtr(v string) *string { return &v }

func randomService() domain.Service {
	return carttest.Service(domain.ServiceID(gofakeit.Number(1, 1_000_000)), gofakeit.JobTitle(), "video",
		fmt.Sprintf("%.2f", gofakeit.Price(100, 5000)))
}

func (s *engineSuite) TestScenario() {
	t := s.T()
	ctx := t.Context()
	e := s.fx.Engine

	_, err := e.Add(ctx, "U", carttest.Service(7, "Beat Making", "", "2500"), nil)
	require.NoError(t, err)

	items := e.Items(ctx, "U")
	require.Len(t, items, 1)
	assert.Equal(t, domain.ServiceID(7), items[0].Service.ID)
	assert.False(t, items[0].HasEventDetails)

	flag := true
	_, err = e.Update(ctx, "U", 7, domain.Patch{
		EventDate:       domain.Some("2025-01-10"),
		EventTime:       domain.Some("14:00"),
		EventLocation:   domain.Null(),
		HasEventDetails: &flag,
	})
	require.NoError(t, err)
	assert.True(t, e.Items(ctx, "U")[0].HasEventDetails)

	_, err = e.Remove(ctx, "U", 7)
	require.NoError(t, err)
	assert.Empty(t, e.Items(ctx, "U"))
}

func (s *engineSuite) TestAddDeduplicatesByService() {
	t := s.T()
	ctx := t.Context()
	e := s.fx.Engine

	svc := randomService()
	first, err := e.Add(ctx, "U", svc, nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	s.fx.Clock.Advance(time.Minute)
	second, err := e.Add(ctx, "U", svc, &domain.EventDetails{
		Date:     strPtr("2025-02-01"),
		Time:     strPtr("10:00"),
		Location: strPtr("Mombasa"),
	})
	require.NoError(t, err)
	require.Len(t, second, 1, "same service updates in place")

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].AddedAt, second[0].AddedAt)
	assert.True(t, second[0].UpdatedAt.After(first[0].UpdatedAt))
	assert.True(t, second[0].HasEventDetails)

	_, err = e.Add(ctx, "U", randomService(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Count(ctx, "U"))
}

func (s *engineSuite) TestReadYourWrites() {
	t := s.T()
	ctx := t.Context()
	e := s.fx.Engine

	for i := 0; i < 5; i++ {
		returned, err := e.Add(ctx, "U", randomService(), nil)
		require.NoError(t, err)

		diff := cmp.Diff(returned, e.Items(ctx, "U"), cmpopts.EquateEmpty(), cmp.Comparer(func(a, b domain.Price) bool {
			return a.Amount().Equal(b.Amount())
		}))
		assert.Empty(t, diff)
	}
}

func (s *engineSuite) TestMissingUser() {
	t := s.T()
	ctx := t.Context()
	e := s.fx.Engine

	_, err := e.Add(ctx, " ", randomService(), nil)
	assert.ErrorIs(t, err, domain.ErrMissingUser)
	_, err = e.Update(ctx, "", 1, domain.Patch{})
	assert.ErrorIs(t, err, domain.ErrMissingUser)
	_, err = e.Remove(ctx, "", 1)
	assert.ErrorIs(t, err, domain.ErrMissingUser)
	_, err = e.Clear(ctx, "")
	assert.ErrorIs(t, err, domain.ErrMissingUser)
}

func (s *engineSuite) TestUpdateAndRemoveMissingAreNoOps() {
	t := s.T()
	ctx := t.Context()
	e := s.fx.Engine

	svc := randomService()
	_, err := e.Add(ctx, "U", svc, nil)
	require.NoError(t, err)

	items, err := e.Update(ctx, "U", svc.ID+1, domain.Patch{EventDate: domain.Some("2025-01-10")})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].EventDate)

	items, err = e.Remove(ctx, "U", svc.ID+1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func (s *engineSuite) TestClearIsIdempotent() {
	t := s.T()
	ctx := t.Context()
	e := s.fx.Engine

	items, err := e.Clear(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = e.Add(ctx, "U", randomService(), nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		items, err = e.Clear(ctx, "U")
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.Empty(t, e.Items(ctx, "U"))
	}
}

func (s *engineSuite) TestContainsAndCount() {
	t := s.T()
	ctx := t.Context()
	e := s.fx.Engine

	svc := randomService()
	assert.False(t, e.Contains(ctx, "U", svc.ID))
	assert.Zero(t, e.Count(ctx, "U"))

	_, err := e.Add(ctx, "U", svc, nil)
	require.NoError(t, err)
	assert.True(t, e.Contains(ctx, "U", svc.ID))
	assert.Equal(t, 1, e.Count(ctx, "U"))
	assert.False(t, e.Contains(ctx, "other", svc.ID), "carts are per user")
}

func (s *engineSuite) TestAudioItemsDropLocation() {
	t := s.T()
	ctx := t.Context()
	e := s.fx.Engine

	svc := carttest.Service(3, "Mixing", domain.CategoryAudio, "1500")
	items, err := e.Add(ctx, "U", svc, &domain.EventDetails{
		Date: strPtr("2025-01-10"), Time: strPtr("10:00"), Location: strPtr("Rooftop"),
	})
	require.NoError(t, err)
	assert.Nil(t, items[0].EventLocation)
	assert.True(t, items[0].HasEventDetails)

	items, err = e.Update(ctx, "U", 3, domain.Patch{EventLocation: domain.Some("Rooftop")})
	require.NoError(t, err)
	assert.Nil(t, items[0].EventLocation)
}

func TestEngine_StrictUpdates(t *testing.T) {
	fx := carttest.New(t, nil, cart.WithStrictUpdates())
	ctx := t.Context()

	_, err := fx.Engine.Update(ctx, "U", 42, domain.Patch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = fx.Engine.Remove(ctx, "U", 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_ReturnedItemsAreCopies(t *testing.T) {
	fx := carttest.New(t, nil)
	ctx := t.Context()

	items, err := fx.Engine.Add(ctx, "U", carttest.Service(1, "Shoot", "video", "10"),
		&domain.EventDetails{Date: strPtr("2025-01-10")})
	require.NoError(t, err)

	*items[0].EventDate = "tampered"
	items[0].Service.Title = "tampered"

	stored := fx.Engine.Items(ctx, "U")
	assert.Equal(t, "2025-01-10", *stored[0].EventDate)
	assert.Equal(t, "Shoot", stored[0].Service.Title)
}

type recordingFeed struct{ users []string }

func (f *recordingFeed) Publish(_ context.Context, userID string) error {
	f.users = append(f.users, userID)
	return nil
}

type recordingAuditor struct{ actions []string }

func (a *recordingAuditor) Record(_ context.Context, action, _ string, _ map[string]interface{}) error {
	a.actions = append(a.actions, action)
	return nil
}

func TestEngine_PublishesAndAuditsMutations(t *testing.T) {
	feed := &recordingFeed{}
	audit := &recordingAuditor{}
	fx := carttest.New(t, nil, cart.WithChangeFeed(feed), cart.WithAuditor(audit))
	ctx := t.Context()

	_, err := fx.Engine.Add(ctx, "U", carttest.Service(1, "Shoot", "video", "10"), nil)
	require.NoError(t, err)
	_, err = fx.Engine.Clear(ctx, "U")
	require.NoError(t, err)
	_, err = fx.Engine.Clear(ctx, "")
	require.Error(t, err)

	assert.Equal(t, []string{"U", "U"}, feed.users)
	assert.Equal(t, []string{"cart.add", "cart.clear"}, audit.actions)
}

func TestEngine_RemoveServices(t *testing.T) {
	fx := carttest.New(t, nil)
	ctx := t.Context()

	for _, id := range []domain.ServiceID{1, 2, 3} {
		_, err := fx.Engine.Add(ctx, "U", carttest.Service(id, "svc", "video", "10"), nil)
		require.NoError(t, err)
	}

	items, err := fx.Engine.RemoveServices(ctx, "U", []domain.ServiceID{1, 3, 42})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.ServiceID(2), items[0].Service.ID)

	_, err = fx.Engine.RemoveServices(ctx, "", []domain.ServiceID{2})
	assert.ErrorIs(t, err, domain.ErrMissingUser)
}

func TestEngine_IDGenerator(t *testing.T) {
	next := 0
	fx := carttest.New(t, nil, cart.WithIDGenerator(func() domain.ItemID {
		next++
		return domain.ItemID(fmt.Sprintf("item-%d", next))
	}))
	ctx := t.Context()

	_, err := fx.Engine.Add(ctx, "U", carttest.Service(1, "Shoot", "video", "10"), nil)
	require.NoError(t, err)
	items, err := fx.Engine.Add(ctx, "U", carttest.Service(1, "Shoot", "video", "10"), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID("item-1"), items[0].ID, "re-adding keeps the original id")

	items, err = fx.Engine.Add(ctx, "U", carttest.Service(2, "Mix", domain.CategoryAudio, "5"), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID("item-2"), items[1].ID)
}

func TestEngine_ConcurrentAddsAreSerialised(t *testing.T) {
	fx := carttest.New(t, nil)
	ctx := t.Context()

	var (
		mu            sync.Mutex
		notifications int
		sizes         []int
	)
	sub := fx.Engine.Subscribe(ctx, "U", func(items []domain.CartItem) {
		mu.Lock()
		defer mu.Unlock()
		notifications++
		sizes = append(sizes, len(items))
	})
	defer sub.Close()

	const workers = 12
	services := []domain.ServiceID{1, 2, 3}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := services[i%len(services)]
			_, err := fx.Engine.Add(ctx, "U", carttest.Service(id, "svc", "video", "10"), nil)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	items := fx.Engine.Items(ctx, "U")
	require.Len(t, items, len(services), "one item per service")
	seen := map[domain.ServiceID]int{}
	for _, item := range items {
		seen[item.Service.ID]++
	}
	for _, id := range services {
		assert.Equal(t, 1, seen[id])
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, workers+1, notifications, "replay plus one per add")
	for i := 1; i < len(sizes); i++ {
		assert.GreaterOrEqual(t, sizes[i], sizes[i-1], "notifications arrive in write order")
	}
}
