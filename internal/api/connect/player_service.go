package connect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/app/filter"
	"github.com/osa030/rhythmical/internal/app/notification"
	"github.com/osa030/rhythmical/internal/app/playback"
	"github.com/osa030/rhythmical/internal/domain/catalog"
	"github.com/osa030/rhythmical/internal/domain/song"
)

// ErrReloadUnavailable is returned by Reload when no song source is configured.
var ErrReloadUnavailable = errors.New("catalog reload is not configured")

// PlayerServiceName is the fully-qualified name of the control service.
const PlayerServiceName = "rhythmical.player.v1.PlayerService"

// Procedure paths of the control service.
const (
	GetStatusProcedure     = "/" + PlayerServiceName + "/GetStatus"
	PlayProcedure          = "/" + PlayerServiceName + "/Play"
	PauseProcedure         = "/" + PlayerServiceName + "/Pause"
	NextProcedure          = "/" + PlayerServiceName + "/Next"
	PreviousProcedure      = "/" + PlayerServiceName + "/Previous"
	SelectProcedure        = "/" + PlayerServiceName + "/Select"
	SeekProcedure          = "/" + PlayerServiceName + "/Seek"
	SetFilterProcedure     = "/" + PlayerServiceName + "/SetFilter"
	GetUpcomingProcedure   = "/" + PlayerServiceName + "/GetUpcoming"
	ListSongsProcedure     = "/" + PlayerServiceName + "/ListSongs"
	ListPlaylistsProcedure = "/" + PlayerServiceName + "/ListPlaylists"
	ReloadProcedure        = "/" + PlayerServiceName + "/Reload"
	SubscribeProcedure     = "/" + PlayerServiceName + "/Subscribe"
)

// Options configures the PlayerService.
type Options struct {
	Token         string              // Control token; empty disables authentication
	UpcomingCount int                 // Songs shown in status and by default in GetUpcoming
	Done          <-chan struct{}     // Closed on shutdown to end subscriptions
	Songs         catalog.SongFetcher // Source for Reload; nil disables reloading
}

// PlayerService exposes the playback coordinator over Connect RPC.
type PlayerService struct {
	player        *playback.Coordinator
	playlists     *filter.Set
	notifications *notification.Manager
	opts          Options

	mu       sync.Mutex
	playlist string
	search   string
}

// NewPlayerService creates a new PlayerService and activates the default
// playlist without search text on the player.
func NewPlayerService(player *playback.Coordinator, playlists *filter.Set, notifications *notification.Manager, opts Options) *PlayerService {
	if opts.UpcomingCount <= 0 {
		opts.UpcomingCount = playback.VisibleUpcoming
	}
	defaultPlaylist := playlists.Default()
	player.OnFilterChanged(filter.Make(defaultPlaylist, ""))

	return &PlayerService{
		player:        player,
		playlists:     playlists,
		notifications: notifications,
		opts:          opts,
		playlist:      defaultPlaylist.Name(),
	}
}

// Handler returns the path prefix and handler serving every procedure.
func (s *PlayerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		WithJSON(),
		connect.WithInterceptors(NewTokenAuthInterceptor(s.opts.Token)),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, s.GetStatus, opts...))
	mux.Handle(PlayProcedure, connect.NewUnaryHandler(PlayProcedure, s.Play, opts...))
	mux.Handle(PauseProcedure, connect.NewUnaryHandler(PauseProcedure, s.Pause, opts...))
	mux.Handle(NextProcedure, connect.NewUnaryHandler(NextProcedure, s.Next, opts...))
	mux.Handle(PreviousProcedure, connect.NewUnaryHandler(PreviousProcedure, s.Previous, opts...))
	mux.Handle(SelectProcedure, connect.NewUnaryHandler(SelectProcedure, s.Select, opts...))
	mux.Handle(SeekProcedure, connect.NewUnaryHandler(SeekProcedure, s.Seek, opts...))
	mux.Handle(SetFilterProcedure, connect.NewUnaryHandler(SetFilterProcedure, s.SetFilter, opts...))
	mux.Handle(GetUpcomingProcedure, connect.NewUnaryHandler(GetUpcomingProcedure, s.GetUpcoming, opts...))
	mux.Handle(ListSongsProcedure, connect.NewUnaryHandler(ListSongsProcedure, s.ListSongs, opts...))
	mux.Handle(ListPlaylistsProcedure, connect.NewUnaryHandler(ListPlaylistsProcedure, s.ListPlaylists, opts...))
	mux.Handle(ReloadProcedure, connect.NewUnaryHandler(ReloadProcedure, s.Reload, opts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, s.Subscribe, opts...))
	return "/" + PlayerServiceName + "/", mux
}

// ApplyFilter activates a playlist and search text.
func (s *PlayerService) ApplyFilter(playlist, search string) (*SetFilterResponse, error) {
	f, err := s.playlists.Filter(playlist, search)
	if err != nil {
		return nil, err
	}
	name := s.playlists.Default().Name()
	if p, ok := s.playlists.Lookup(playlist); ok {
		name = p.Name()
	}

	changed := s.player.OnFilterChanged(f)

	s.mu.Lock()
	s.playlist = name
	s.search = search
	s.mu.Unlock()

	return &SetFilterResponse{
		FilterKey:     f.Key,
		Changed:       changed,
		FilteredCount: s.player.Status().FilteredCount,
	}, nil
}

// GetStatus returns the player state.
func (s *PlayerService) GetStatus(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return connect.NewResponse(s.status()), nil
}

// Play resumes the current song, or starts the queue when nothing is selected.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	started, err := s.player.PlayOrStart()
	if err != nil {
		return nil, toConnectError(err)
	}
	if !started {
		zlog.Debug().Msg("connect: play requested with an exhausted queue")
	}
	return connect.NewResponse(s.status()), nil
}

// Pause pauses the current song.
func (s *PlayerService) Pause(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	if err := s.player.Pause(); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(s.status()), nil
}

// Next skips to the next queued song.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	if !s.player.Next() {
		zlog.Debug().Msg("connect: next requested with an exhausted queue")
	}
	return connect.NewResponse(s.status()), nil
}

// Previous restarts the current song or goes back in history.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	if err := s.player.Previous(); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(s.status()), nil
}

// Select plays a song by id.
func (s *PlayerService) Select(
	ctx context.Context,
	req *connect.Request[SelectRequest],
) (*connect.Response[StatusResponse], error) {
	if req.Msg.SongID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("song_id is required"))
	}
	if err := s.player.Select(req.Msg.SongID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(s.status()), nil
}

// Seek moves the current song to a position.
func (s *PlayerService) Seek(
	ctx context.Context,
	req *connect.Request[SeekRequest],
) (*connect.Response[StatusResponse], error) {
	if req.Msg.PositionMs < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("position_ms must not be negative"))
	}
	if err := s.player.Seek(time.Duration(req.Msg.PositionMs) * time.Millisecond); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(s.status()), nil
}

// SetFilter changes the active playlist and search text.
func (s *PlayerService) SetFilter(
	ctx context.Context,
	req *connect.Request[SetFilterRequest],
) (*connect.Response[SetFilterResponse], error) {
	resp, err := s.ApplyFilter(req.Msg.Playlist, req.Msg.Search)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

// GetUpcoming returns the next queued songs.
func (s *PlayerService) GetUpcoming(
	ctx context.Context,
	req *connect.Request[UpcomingRequest],
) (*connect.Response[SongsResponse], error) {
	n := req.Msg.Count
	if n <= 0 {
		n = s.opts.UpcomingCount
	}
	songs := s.player.Upcoming(n)
	return connect.NewResponse(&SongsResponse{
		Songs:    songs,
		Total:    len(songs),
		TotalSec: int(song.TotalDuration(songs) / time.Second),
	}), nil
}

// ListSongs lists songs of the active filter, or of the requested
// playlist and search text without changing the active filter.
// Songs are sorted before the limit applies.
func (s *PlayerService) ListSongs(
	ctx context.Context,
	req *connect.Request[ListSongsRequest],
) (*connect.Response[SongsResponse], error) {
	field, err := song.ParseSortField(req.Msg.Sort)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	var songs []song.Song
	if req.Msg.Playlist == "" && req.Msg.Search == "" {
		songs = s.player.Songs()
	} else {
		f, err := s.playlists.Filter(req.Msg.Playlist, req.Msg.Search)
		if err != nil {
			return nil, toConnectError(err)
		}
		songs = s.player.Matching(f.Predicate)
	}

	song.Sort(songs, field, req.Msg.Desc)
	resp := &SongsResponse{
		Total:    len(songs),
		TotalSec: int(song.TotalDuration(songs) / time.Second),
	}
	if req.Msg.Limit > 0 && len(songs) > req.Msg.Limit {
		songs = songs[:req.Msg.Limit]
	}
	resp.Songs = songs
	return connect.NewResponse(resp), nil
}

// ListPlaylists lists the playlists with their song counts.
func (s *PlayerService) ListPlaylists(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ListPlaylistsResponse], error) {
	s.mu.Lock()
	active := s.playlist
	s.mu.Unlock()

	playlists := s.playlists.Playlists()
	resp := &ListPlaylistsResponse{Playlists: make([]PlaylistInfo, 0, len(playlists))}
	for _, p := range playlists {
		resp.Playlists = append(resp.Playlists, PlaylistInfo{
			Name:        p.Name(),
			Description: p.Description(),
			SongCount:   len(s.player.Matching(p.Match)),
			Active:      p.Name() == active,
		})
	}
	return connect.NewResponse(resp), nil
}

// Reload fetches the song list again and swaps it into the player.
func (s *PlayerService) Reload(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ReloadResponse], error) {
	resp, err := s.ReloadCatalog(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

// ReloadCatalog fetches a new catalog and replaces the player's. The current
// song keeps playing; stale queue and history entries are dropped lazily.
func (s *PlayerService) ReloadCatalog(ctx context.Context) (*ReloadResponse, error) {
	if s.opts.Songs == nil {
		return nil, ErrReloadUnavailable
	}
	cat, err := catalog.Load(ctx, s.opts.Songs)
	if err != nil {
		return nil, err
	}
	s.player.ReplaceCatalog(cat)
	return &ReloadResponse{SongCount: cat.Len(), FilteredCount: s.player.Status().FilteredCount}, nil
}

// Subscribe streams playback notifications, starting with the current state.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[notification.Notification],
) error {
	if !authorized(req.Header(), s.opts.Token) {
		return connect.NewError(connect.CodeUnauthenticated, nil)
	}

	// 1. Subscribe before reading the state so no event falls in between.
	// Broadcasts wait on the adapter lock until the initial state is out.
	adapter := &notificationStreamAdapter{stream: stream}
	adapter.mu.Lock()
	subscriptionID := s.notifications.Subscribe(adapter)
	zlog.Debug().Msgf("connect: subscriber %s joined", subscriptionID)

	// 2. Send the current state
	st := s.player.Status()
	err := stream.Send(&notification.Notification{
		Type:      "initial_state",
		SongID:    st.SongID,
		Title:     st.Song.Title,
		Artist:    st.Song.Artist,
		State:     st.State.String(),
		FilterKey: st.FilterKey,
		Timestamp: time.Now(),
	})
	if err != nil {
		adapter.closed = true
		adapter.mu.Unlock()
		s.notifications.Unsubscribe(subscriptionID)
		return err
	}
	adapter.mu.Unlock()

	// 3. Forward broadcasts until the client leaves or the player stops
	select {
	case <-ctx.Done():
	case <-s.opts.Done:
	}

	s.notifications.Unsubscribe(subscriptionID)
	adapter.close()
	zlog.Debug().Msgf("connect: subscriber %s left", subscriptionID)
	return nil
}

func (s *PlayerService) status() *StatusResponse {
	st := s.player.Status()

	s.mu.Lock()
	playlist, search := s.playlist, s.search
	s.mu.Unlock()

	resp := &StatusResponse{
		State:         st.State.String(),
		Loading:       st.Loading,
		PositionMs:    st.Position.Milliseconds(),
		Playlist:      playlist,
		Search:        search,
		FilterKey:     st.FilterKey,
		FilteredCount: st.FilteredCount,
		FilteredSec:   int(st.FilteredTotal / time.Second),
		QueueLength:   st.QueueLength,
		HistoryLength: st.HistoryLength,
		Upcoming:      s.player.Upcoming(s.opts.UpcomingCount),
	}
	if st.SongID != "" {
		current := st.Song
		resp.Song = &current
	}
	return resp
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, playback.ErrUnknownSong), errors.Is(err, filter.ErrUnknownPlaylist):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, playback.ErrNoSong), errors.Is(err, playback.ErrNotLoaded):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, ErrReloadUnavailable):
		return connect.NewError(connect.CodeUnimplemented, err)
	case errors.Is(err, playback.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.HasType(err, (*catalog.FetchError)(nil)):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Sends after close fail so a late broadcast never touches a finished stream.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	closed bool
	stream *connect.ServerStream[notification.Notification]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("stream closed")
	}
	return a.stream.Send(n)
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}
