package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/config"
	"github.com/gvarikaa/new-DapDip-sub001/internal/fixture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/store"
)

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SEQ_DB_PATH", filepath.Join(t.TempDir(), "seq.db"))
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServe_ExposesFixtureHealthAndMetrics(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"SERVE_ADDR":  "127.0.0.1:0",
		"SEQ_FIXTURE": "../harness/testdata/fixtures/alice.yaml",
	})

	var ep *Endpoint
	app := fxtest.New(t, Serve(cfg), fx.Populate(&ep))
	app.RequireStart()
	defer app.RequireStop()

	base := "http://" + ep.Addr()

	code, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")

	client, err := collab.NewHTTPClient(collab.HTTPConfig{BaseURL: base}, nil)
	require.NoError(t, err)
	page, err := client.FetchStoryFeed(context.Background(), collab.StoryFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "a1", page.Items[0].ID)
}

func TestServe_MissingFixtureFailsStart(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"SERVE_ADDR":  "127.0.0.1:0",
		"SEQ_FIXTURE": filepath.Join(t.TempDir(), "missing.yaml"),
	})

	app := fx.New(Serve(cfg), fx.NopLogger)
	assert.Error(t, app.Err())
}

func TestModule_Validates(t *testing.T) {
	cfg := loadConfig(t, nil)
	assert.NoError(t, fx.ValidateApp(Play(cfg)))
	assert.NoError(t, fx.ValidateApp(Serve(cfg)))
}

func quickStory(id string, offset time.Duration) media.Item {
	return media.Item{
		ID:           id,
		Kind:         media.KindText,
		Caption:      id,
		DurationHint: 150 * time.Millisecond,
		Author:       media.AuthorRef{ID: "alice", Username: "alice"},
		CreatedAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Add(offset),
	}
}

type playEnv struct {
	player  *Player
	store   *store.Store
	backend *fixture.Backend
}

func startPlayer(t *testing.T, f *fixture.Fixture) *playEnv {
	t.Helper()
	backend := fixture.NewBackend(f)
	srv := httptest.NewServer(fixture.NewServer(backend, nil, nil).Routes())
	t.Cleanup(srv.Close)

	cfg := loadConfig(t, map[string]string{
		"COLLAB_BASE_URL":   srv.URL,
		"SEQ_TICK_INTERVAL": "20ms",
	})

	env := &playEnv{backend: backend}
	app := fxtest.New(t, Play(cfg), fx.Populate(&env.player, &env.store))
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	return env
}

func TestPlayer_StoriesRunToClose(t *testing.T) {
	env := startPlayer(t, &fixture.Fixture{
		Stories: []media.Item{quickStory("a1", 0), quickStory("a2", time.Minute)},
	})

	res, err := env.player.Run(context.Background(), PlayOptions{
		Mode:     ModeStories,
		Duration: 10 * time.Second,
		Session:  "play-stories",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Activations)
	assert.Equal(t, 2, res.Completions)
	assert.Equal(t, "closed", res.State)

	records, err := env.store.Transitions(context.Background(), "play-stories")
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, "activated", records[0].Kind)
	assert.Equal(t, "closed", records[len(records)-1].Kind)

	assert.Eventually(t, func() bool {
		finals := 0
		for _, v := range env.backend.Views() {
			if v.Final() {
				finals++
			}
		}
		return finals == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPlayer_UnknownAuthor(t *testing.T) {
	env := startPlayer(t, &fixture.Fixture{Stories: []media.Item{quickStory("a1", 0)}})

	_, err := env.player.Run(context.Background(), PlayOptions{Author: "bob", Duration: time.Second})
	assert.Error(t, err)
}

func TestPlayer_NothingToPlay(t *testing.T) {
	env := startPlayer(t, &fixture.Fixture{})

	_, err := env.player.Run(context.Background(), PlayOptions{Mode: ModeReels, Duration: time.Second})
	assert.ErrorIs(t, err, ErrNothingToPlay)
}

func TestPlayer_ReelsStopAtEndOfFeed(t *testing.T) {
	reel := func(id string) media.Item {
		return media.Item{
			ID:           id,
			Kind:         media.KindVideo,
			SourceURL:    "https://cdn.example.com/" + id + ".mp4",
			DurationHint: time.Second,
			Author:       media.AuthorRef{ID: "carol", Username: "carol"},
		}
	}
	env := startPlayer(t, &fixture.Fixture{Reels: []media.Item{reel("r0"), reel("r1")}})

	res, err := env.player.Run(context.Background(), PlayOptions{
		Mode:     ModeReels,
		Dwell:    100 * time.Millisecond,
		Duration: 10 * time.Second,
		Session:  "play-reels",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Activations)
	assert.Equal(t, "r1", res.ItemID)

	sessions, err := env.store.Sessions(context.Background())
	require.NoError(t, err)
	assert.Contains(t, sessions, "play-reels")
}

func TestPlayer_RejectsUnknownMode(t *testing.T) {
	env := startPlayer(t, &fixture.Fixture{})

	_, err := env.player.Run(context.Background(), PlayOptions{Mode: "podcasts"})
	assert.ErrorContains(t, err, "unknown mode")
}
