package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/rhythmical/internal/app/filter"
	"github.com/osa030/rhythmical/internal/app/notification"
	"github.com/osa030/rhythmical/internal/app/playback"
	"github.com/osa030/rhythmical/internal/domain/catalog"
	"github.com/osa030/rhythmical/internal/domain/song"
	"github.com/osa030/rhythmical/internal/infra/audio"
)

type staticResolver struct{}

func (staticResolver) ResolveSource(_ context.Context, id string) (string, error) {
	return "memory://" + id, nil
}

// songList serves a replaceable song list for reloads.
type songList struct {
	mu    sync.Mutex
	songs []song.Song
	err   error
}

func (l *songList) FetchSongs(context.Context) ([]song.Song, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.songs, l.err
}

func (l *songList) set(songs []song.Song, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.songs, l.err = songs, err
}

type fixture struct {
	service *PlayerService
	player  *playback.Coordinator
	manager *notification.Manager
	songs   *songList
	server  *httptest.Server
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()

	songs := &songList{songs: []song.Song{
		{ID: "1", Title: "So What", Artist: "Miles Davis", Duration: 562, Rating: 5},
		{ID: "2", Title: "Naima", Artist: "John Coltrane", Duration: 261, Rating: 4},
		{ID: "3", Title: "Peace Piece", Artist: "Bill Evans", Duration: 402},
	}}
	cat, err := catalog.Load(context.Background(), songs)
	require.NoError(t, err)
	player := playback.NewCoordinator(cat, staticResolver{}, audio.NewSimulatedOutput(), playback.Config{
		QueueLength:     10,
		HistoryCapacity: 10,
	})
	playlists, err := filter.NewSet(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	manager := notification.NewManager()
	go manager.Run(ctx, player.Events(), player.Lookup)

	service := NewPlayerService(player, playlists, manager, Options{Token: token, Done: ctx.Done(), Songs: songs})
	mux := http.NewServeMux()
	mux.Handle(service.Handler())
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		server.Close()
		player.Close()
	})
	return &fixture{service: service, player: player, manager: manager, songs: songs, server: server}
}

func (f *fixture) client(token string) *Client {
	return NewClient(f.server.Client(), f.server.URL, token)
}

func TestPlayerService_PlayAndPause(t *testing.T) {
	f := newFixture(t, "")
	client := f.client("")
	ctx := context.Background()

	status, err := client.GetStatus(ctx)
	require.NoError(t, err)
	assert.Nil(t, status.Song)
	assert.Equal(t, "idle", status.State)
	assert.Equal(t, "All", status.Playlist)
	assert.Equal(t, "All_", status.FilterKey, "the default playlist is active from the start")
	assert.Equal(t, 3, status.FilteredCount)
	assert.Equal(t, 1225, status.FilteredSec)

	status, err = client.Play(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.Song, "play starts the queue when nothing is selected")
	assert.Equal(t, "playing", status.State)

	status, err = client.Pause(ctx)
	require.NoError(t, err)
	assert.Equal(t, "paused", status.State)
}

func TestPlayerService_Select(t *testing.T) {
	f := newFixture(t, "")
	client := f.client("")
	ctx := context.Background()

	tests := []struct {
		name     string
		songID   string
		wantCode connect.Code
	}{
		{name: "known song", songID: "2"},
		{name: "unknown song", songID: "42", wantCode: connect.CodeNotFound},
		{name: "missing id", songID: "", wantCode: connect.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := client.Select(ctx, tt.songID)
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, connect.CodeOf(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, status.Song)
			assert.Equal(t, "Naima", status.Song.Title)
		})
	}
}

func TestPlayerService_SetFilter(t *testing.T) {
	f := newFixture(t, "")
	client := f.client("")
	ctx := context.Background()

	resp, err := client.SetFilter(ctx, "great", "")
	require.NoError(t, err)
	assert.True(t, resp.Changed)
	assert.Equal(t, "Great_", resp.FilterKey)
	assert.Equal(t, 2, resp.FilteredCount)

	resp, err = client.SetFilter(ctx, "Great", "")
	require.NoError(t, err)
	assert.False(t, resp.Changed, "same key leaves the queue alone")

	_, err = client.SetFilter(ctx, "Jazz Club", "")
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	playlists, err := client.ListPlaylists(ctx)
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, p := range playlists.Playlists {
		counts[p.Name] = p.SongCount
		assert.Equal(t, p.Name == "Great", p.Active, p.Name)
	}
	assert.Equal(t, map[string]int{"All": 3, "Best": 1, "Great": 2, "Good": 2, "Unrated": 1}, counts)

	status, err := client.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Great", status.Playlist)
}

func TestPlayerService_ListSongs(t *testing.T) {
	f := newFixture(t, "")
	client := f.client("")
	ctx := context.Background()

	tests := []struct {
		name      string
		req       *ListSongsRequest
		wantIDs   []string
		wantTotal int
	}{
		{name: "active filter sorted by artist", req: &ListSongsRequest{}, wantIDs: []string{"3", "2", "1"}, wantTotal: 3},
		{name: "limit applies after sorting", req: &ListSongsRequest{Limit: 2}, wantIDs: []string{"3", "2"}, wantTotal: 3},
		{name: "search", req: &ListSongsRequest{Search: "coltrane"}, wantIDs: []string{"2"}, wantTotal: 1},
		{name: "playlist", req: &ListSongsRequest{Playlist: "Unrated"}, wantIDs: []string{"3"}, wantTotal: 1},
		{name: "sort by title", req: &ListSongsRequest{Sort: "title"}, wantIDs: []string{"2", "3", "1"}, wantTotal: 3},
		{name: "sort by duration descending", req: &ListSongsRequest{Sort: "duration", Desc: true}, wantIDs: []string{"1", "3", "2"}, wantTotal: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.ListSongs(ctx, tt.req)
			require.NoError(t, err)
			var wantSec int
			for _, id := range tt.wantIDs {
				s, _ := f.player.Lookup(id)
				wantSec += s.Duration
			}
			if tt.req.Limit == 0 {
				assert.Equal(t, wantSec, resp.TotalSec)
			} else {
				assert.Equal(t, 1225, resp.TotalSec, "total covers songs beyond the limit")
			}
			ids := make([]string, 0, len(resp.Songs))
			for _, s := range resp.Songs {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, resp.Total)
		})
	}

	_, err := client.ListSongs(ctx, &ListSongsRequest{Sort: "bpm"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	status, err := client.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "All_", status.FilterKey, "listing does not change the active filter")
}

func TestPlayerService_Seek(t *testing.T) {
	f := newFixture(t, "")
	client := f.client("")
	ctx := context.Background()

	_, err := client.Seek(ctx, time.Second)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err), "no song selected")

	_, err = client.Select(ctx, "1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !f.player.Status().Loading }, 2*time.Second, 10*time.Millisecond)
	_, err = client.Pause(ctx)
	require.NoError(t, err)

	status, err := client.Seek(ctx, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), status.PositionMs)
	assert.Equal(t, "paused", status.State)

	_, err = client.Seek(ctx, -time.Second)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestPlayerService_Reload(t *testing.T) {
	f := newFixture(t, "")
	client := f.client("")
	ctx := context.Background()

	_, err := client.SetFilter(ctx, "Great", "")
	require.NoError(t, err)

	f.songs.set([]song.Song{
		{ID: "1", Title: "So What", Artist: "Miles Davis", Duration: 562, Rating: 5},
		{ID: "4", Title: "Blue in Green", Artist: "Miles Davis", Duration: 337, Rating: 4},
		{ID: "5", Title: "Flamenco Sketches", Artist: "Miles Davis", Duration: 566, Rating: 2},
		{ID: "6", Title: "All Blues", Artist: "Miles Davis", Duration: 693},
	}, nil)

	resp, err := client.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.SongCount)
	assert.Equal(t, 2, resp.FilteredCount, "the active filter applies to the new catalog")

	songs, err := client.ListSongs(ctx, &ListSongsRequest{Sort: "title"})
	require.NoError(t, err)
	assert.Equal(t, "Blue in Green", songs.Songs[0].Title)

	f.songs.set(nil, errors.New("server down"))
	_, err = client.Reload(ctx)
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))

	status, err := client.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.FilteredCount, "a failed reload keeps the catalog")
}

func TestPlayerService_ReloadWithoutSource(t *testing.T) {
	cat := catalog.New([]song.Song{{ID: "1", Title: "So What"}})
	player := playback.NewCoordinator(cat, staticResolver{}, audio.NewSimulatedOutput(), playback.Config{})
	t.Cleanup(player.Close)
	playlists, err := filter.NewSet(nil)
	require.NoError(t, err)

	service := NewPlayerService(player, playlists, notification.NewManager(), Options{})
	_, err = service.Reload(context.Background(), connect.NewRequest(&Empty{}))
	assert.Equal(t, connect.CodeUnimplemented, connect.CodeOf(err))
	assert.Equal(t, "All_", player.Status().FilterKey)
}

func TestPlayerService_Upcoming(t *testing.T) {
	f := newFixture(t, "")
	client := f.client("")

	resp, err := client.GetUpcoming(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, resp.Songs, 2)

	resp, err = client.GetUpcoming(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, resp.Songs, 3, "default count is capped by the queue")
}

func TestPlayerService_Auth(t *testing.T) {
	f := newFixture(t, "secret")
	ctx := context.Background()

	tests := []struct {
		name     string
		token    string
		wantCode connect.Code
	}{
		{name: "no token", token: "", wantCode: connect.CodeUnauthenticated},
		{name: "wrong token", token: "guess", wantCode: connect.CodeUnauthenticated},
		{name: "valid token", token: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := f.client(tt.token)

			_, err := client.GetStatus(ctx)
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, connect.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}

			subCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			err = client.Subscribe(subCtx, func(*notification.Notification) error {
				return errStop
			})
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, connect.CodeOf(err))
			} else {
				assert.ErrorIs(t, err, errStop)
			}
		})
	}
}

var errStop = errors.New("stop")

func TestPlayerService_Subscribe(t *testing.T) {
	f := newFixture(t, "")
	client := f.client("")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *notification.Notification, 16)
	go func() {
		_ = client.Subscribe(ctx, func(n *notification.Notification) error {
			received <- n
			return nil
		})
	}()

	first := <-received
	assert.Equal(t, "initial_state", first.Type)
	assert.Equal(t, "idle", first.State)
	assert.Equal(t, "All_", first.FilterKey)
	assert.Equal(t, 1, f.manager.SubscriberCount(), "subscribed before the initial state is sent")

	_, err := client.Select(context.Background(), "1")
	require.NoError(t, err)

	for {
		select {
		case n := <-received:
			if n.Type != "song_changed" {
				continue
			}
			assert.Equal(t, "1", n.SongID)
			assert.Equal(t, "So What", n.Title)
			assert.NotZero(t, n.SequenceNo)
			return
		case <-ctx.Done():
			t.Fatal("no song_changed notification received")
		}
	}
}
