package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T, clock quartz.Clock) Store
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T, clock quartz.Clock) Store {
			return NewMemoryStore(clock)
		}},
		{"file", func(t *testing.T, clock quartz.Clock) Store {
			s, err := OpenFile(filepath.Join(t.TempDir(), "state.json"), clock)
			require.NoError(t, err)
			return s
		}},
		{"sqlite", func(t *testing.T, clock quartz.Clock) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"), clock)
			require.NoError(t, err)
			return s
		}},
		{"redis", func(t *testing.T, clock quartz.Clock) Store {
			addr := os.Getenv("ACEHIGH_TEST_REDIS_ADDR")
			if addr == "" {
				t.Skip("ACEHIGH_TEST_REDIS_ADDR not set")
			}
			s, err := OpenRedis(context.Background(), RedisConfig{
				Addr:   addr,
				Prefix: "acehigh-test:" + t.Name() + ":",
			}, clock)
			require.NoError(t, err)
			return s
		}},
	}
}

func TestStoreBackends(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Run("get missing key", func(t *testing.T) {
				s := b.open(t, quartz.NewMock(t))
				defer s.Close()

				_, err := s.Get(context.Background(), "missing")
				assert.ErrorIs(t, err, ErrNotFound)
				_, err = s.GetWithExpiry(context.Background(), "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("set get remove", func(t *testing.T) {
				ctx := context.Background()
				s := b.open(t, quartz.NewMock(t))
				defer s.Close()

				require.NoError(t, s.Set(ctx, "k", []byte(`"v1"`)))
				require.NoError(t, s.Set(ctx, "k", []byte(`"v2"`)))
				got, err := s.Get(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, `"v2"`, string(got))

				require.NoError(t, s.Remove(ctx, "k"))
				require.NoError(t, s.Remove(ctx, "k"))
				_, err = s.Get(ctx, "k")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("entries expire", func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				clock := quartz.NewMock(t)
				s := b.open(t, clock)
				defer s.Close()

				require.NoError(t, s.SetWithExpiry(ctx, "handle", []byte(`{"game_id":"g1"}`), 24*time.Hour))

				clock.Advance(23 * time.Hour).MustWait(ctx)
				got, err := s.GetWithExpiry(ctx, "handle")
				require.NoError(t, err)
				assert.JSONEq(t, `{"game_id":"g1"}`, string(got))

				clock.Advance(time.Hour).MustWait(ctx)
				_, err = s.GetWithExpiry(ctx, "handle")
				assert.ErrorIs(t, err, ErrExpired)

				_, err = s.GetWithExpiry(ctx, "handle")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("plain entries never expire", func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				clock := quartz.NewMock(t)
				s := b.open(t, clock)
				defer s.Close()

				require.NoError(t, s.Set(ctx, "lifetime.handsPlayed", []byte("3")))
				clock.Advance(1000 * time.Hour).MustWait(ctx)
				got, err := s.GetWithExpiry(ctx, "lifetime.handsPlayed")
				require.NoError(t, err)
				assert.Equal(t, "3", string(got))
			})

			t.Run("json helpers", func(t *testing.T) {
				ctx := context.Background()
				s := b.open(t, quartz.NewMock(t))
				defer s.Close()

				require.NoError(t, SetJSON(ctx, s, "series", []int{3, 2, 1}))
				series, err := GetJSON[[]int](ctx, s, "series")
				require.NoError(t, err)
				assert.Equal(t, []int{3, 2, 1}, series)

				n, err := GetJSONOr(ctx, s, "absent", 7)
				require.NoError(t, err)
				assert.Equal(t, 7, n)

				require.NoError(t, SetJSONWithExpiry(ctx, s, "h", map[string]string{"game_id": "g"}, time.Hour))
				h, err := GetJSONWithExpiry[map[string]string](ctx, s, "h")
				require.NoError(t, err)
				assert.Equal(t, "g", h["game_id"])
			})
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := OpenFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "snapshot", []byte(`{"total_pot":12}`)))

	reopened, err := OpenFile(path, nil)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "snapshot")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_pot":12}`, string(got))

	matches, err := filepath.Glob(path + ".tmp.*")
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files should be renamed or cleaned up")
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenFile(path, nil)
	assert.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "etcd"}, nil)
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore(nil)
	assert.ErrorIs(t, s.Set(ctx, "k", []byte("1")), context.Canceled)
}
