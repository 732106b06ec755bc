package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"strathub/internal/config"
	"strathub/internal/database"
	"strathub/internal/model"
	"strathub/internal/queue"
	"strathub/internal/repository"
	"strathub/pkg/jwt"
	"strathub/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testEnv wires real repositories over a throwaway sqlite file so service
// tests exercise the same query paths production does.
type testEnv struct {
	db        *gorm.DB
	users     *repository.UserRepository
	bots      *repository.BotRepository
	backtests *repository.BacktestRepository
	trades    *repository.TradeRepository
	jwt       *jwt.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "strathub_test.db"))
	require.NoError(t, err)

	return &testEnv{
		db:        db,
		users:     repository.NewUserRepository(db),
		bots:      repository.NewBotRepository(db),
		backtests: repository.NewBacktestRepository(db),
		trades:    repository.NewTradeRepository(db),
		jwt:       jwt.NewManager("test-secret", 15*time.Minute, 7*24*time.Hour),
	}
}

func (e *testEnv) authService() *AuthService {
	return NewAuthService(e.users, e.jwt, config.GoogleConfig{})
}

func (e *testEnv) seedUser(t *testing.T, email string) *model.User {
	t.Helper()

	auth := e.authService()
	resp, err := auth.Register(context.Background(), &model.RegisterRequest{
		Email:    email,
		Username: "tester",
		Password: "correct-horse-1",
	})
	require.NoError(t, err)

	user, err := e.users.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	return user
}

func (e *testEnv) seedBot(t *testing.T, ownerID string) *model.Bot {
	t.Helper()

	bot, err := NewBotService(e.bots).Create(context.Background(), ownerID, &model.CreateBotRequest{
		Name:        "spy-strangle",
		Description: "strangle on SPY",
		Strategy:    model.StrategyShortStrangle,
		Parameters:  map[string]interface{}{"underlying_symbol": "SPY"},
	})
	require.NoError(t, err)
	return bot
}

// fakeTradeQueue records enqueued tasks and released claims, and can be
// primed to fail like a queue that already holds the job.
type fakeTradeQueue struct {
	enqueueErr error
	tasks      []queue.Task
	released   []string
}

func (q *fakeTradeQueue) Enqueue(_ context.Context, task queue.Task) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeTradeQueue) Release(_ context.Context, id string) error {
	q.released = append(q.released, id)
	return nil
}

// fakeStop records broadcast stop signals.
type fakeStop struct {
	channels []string
	messages []interface{}
}

func (s *fakeStop) Publish(_ context.Context, channel string, message interface{}) error {
	s.channels = append(s.channels, channel)
	s.messages = append(s.messages, message)
	return nil
}

func nopLog() *logger.Logger {
	return logger.Nop()
}
