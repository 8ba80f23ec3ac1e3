package connect

import (
	"context"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/osa030/rhythmical/internal/app/notification"
)

// Client calls the PlayerService.
type Client struct {
	getStatus     *connect.Client[Empty, StatusResponse]
	play          *connect.Client[Empty, StatusResponse]
	pause         *connect.Client[Empty, StatusResponse]
	next          *connect.Client[Empty, StatusResponse]
	previous      *connect.Client[Empty, StatusResponse]
	selectSong    *connect.Client[SelectRequest, StatusResponse]
	seek          *connect.Client[SeekRequest, StatusResponse]
	setFilter     *connect.Client[SetFilterRequest, SetFilterResponse]
	getUpcoming   *connect.Client[UpcomingRequest, SongsResponse]
	listSongs     *connect.Client[ListSongsRequest, SongsResponse]
	listPlaylists *connect.Client[Empty, ListPlaylistsResponse]
	reload        *connect.Client[Empty, ReloadResponse]
	subscribe     *connect.Client[Empty, notification.Notification]
}

// NewClient creates a client for the player at baseURL. A non-empty token
// is sent with every call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{
		WithJSON(),
		connect.WithInterceptors(tokenSetter{token: token}),
	}, opts...)

	return &Client{
		getStatus:     connect.NewClient[Empty, StatusResponse](httpClient, baseURL+GetStatusProcedure, opts...),
		play:          connect.NewClient[Empty, StatusResponse](httpClient, baseURL+PlayProcedure, opts...),
		pause:         connect.NewClient[Empty, StatusResponse](httpClient, baseURL+PauseProcedure, opts...),
		next:          connect.NewClient[Empty, StatusResponse](httpClient, baseURL+NextProcedure, opts...),
		previous:      connect.NewClient[Empty, StatusResponse](httpClient, baseURL+PreviousProcedure, opts...),
		selectSong:    connect.NewClient[SelectRequest, StatusResponse](httpClient, baseURL+SelectProcedure, opts...),
		seek:          connect.NewClient[SeekRequest, StatusResponse](httpClient, baseURL+SeekProcedure, opts...),
		setFilter:     connect.NewClient[SetFilterRequest, SetFilterResponse](httpClient, baseURL+SetFilterProcedure, opts...),
		getUpcoming:   connect.NewClient[UpcomingRequest, SongsResponse](httpClient, baseURL+GetUpcomingProcedure, opts...),
		listSongs:     connect.NewClient[ListSongsRequest, SongsResponse](httpClient, baseURL+ListSongsProcedure, opts...),
		listPlaylists: connect.NewClient[Empty, ListPlaylistsResponse](httpClient, baseURL+ListPlaylistsProcedure, opts...),
		reload:        connect.NewClient[Empty, ReloadResponse](httpClient, baseURL+ReloadProcedure, opts...),
		subscribe:     connect.NewClient[Empty, notification.Notification](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	return unary(ctx, c.getStatus, &Empty{})
}

func (c *Client) Play(ctx context.Context) (*StatusResponse, error) {
	return unary(ctx, c.play, &Empty{})
}

func (c *Client) Pause(ctx context.Context) (*StatusResponse, error) {
	return unary(ctx, c.pause, &Empty{})
}

func (c *Client) Next(ctx context.Context) (*StatusResponse, error) {
	return unary(ctx, c.next, &Empty{})
}

func (c *Client) Previous(ctx context.Context) (*StatusResponse, error) {
	return unary(ctx, c.previous, &Empty{})
}

func (c *Client) Select(ctx context.Context, songID string) (*StatusResponse, error) {
	return unary(ctx, c.selectSong, &SelectRequest{SongID: songID})
}

func (c *Client) Seek(ctx context.Context, pos time.Duration) (*StatusResponse, error) {
	return unary(ctx, c.seek, &SeekRequest{PositionMs: pos.Milliseconds()})
}

func (c *Client) SetFilter(ctx context.Context, playlist, search string) (*SetFilterResponse, error) {
	return unary(ctx, c.setFilter, &SetFilterRequest{Playlist: playlist, Search: search})
}

func (c *Client) GetUpcoming(ctx context.Context, count int) (*SongsResponse, error) {
	return unary(ctx, c.getUpcoming, &UpcomingRequest{Count: count})
}

func (c *Client) ListSongs(ctx context.Context, req *ListSongsRequest) (*SongsResponse, error) {
	return unary(ctx, c.listSongs, req)
}

func (c *Client) ListPlaylists(ctx context.Context) (*ListPlaylistsResponse, error) {
	return unary(ctx, c.listPlaylists, &Empty{})
}

func (c *Client) Reload(ctx context.Context) (*ReloadResponse, error) {
	return unary(ctx, c.reload, &Empty{})
}

// Subscribe calls fn for each notification until the stream ends,
// fn returns an error, or ctx is done.
func (c *Client) Subscribe(ctx context.Context, fn func(*notification.Notification) error) error {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	return stream.Err()
}

func unary[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], msg *Req) (*Res, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
