package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/rhythmical/internal/app/filter"
	"github.com/osa030/rhythmical/internal/app/history"
	"github.com/osa030/rhythmical/internal/app/queue"
	"github.com/osa030/rhythmical/internal/domain/catalog"
	"github.com/osa030/rhythmical/internal/domain/song"
	"github.com/osa030/rhythmical/internal/infra/audio"
)

const (
	// VisibleUpcoming is the default number of upcoming songs shown.
	VisibleUpcoming = 5
	// RestartThreshold separates "restart this song" from "go back" in Previous.
	RestartThreshold = 3 * time.Second
	// DefaultResolveTimeout bounds source resolution plus loading.
	DefaultResolveTimeout = 30 * time.Second
)

// SourceResolver resolves a song id to a playable locator.
type SourceResolver interface {
	ResolveSource(ctx context.Context, id string) (string, error)
}

// Config holds coordinator configuration.
type Config struct {
	QueueLength     int           // Look-ahead target length
	HistoryCapacity int           // History stack capacity
	ResolveTimeout  time.Duration // Per-selection resolve+open timeout
	Sampler         queue.Sampler // Random source for queue refills (nil = global)
	EventBuffer     int           // Event channel size
}

// Status is a snapshot of the coordinator.
type Status struct {
	SongID        string
	Song          song.Song
	State         State
	Loading       bool
	Position      time.Duration
	FilterKey     string
	FilteredCount int
	FilteredTotal time.Duration // Combined length of the filtered songs
	QueueLength   int
	HistoryLength int
}

// Coordinator owns the playback session: current song, play/pause flag,
// filter, queue and history. All transitions are serialised by mu.
type Coordinator struct {
	mu sync.Mutex

	catalog  *catalog.Catalog
	resolver SourceResolver
	output   audio.Output

	queue    queue.Queue
	history  *history.Stack
	filter   filter.Filter
	filtered []string

	// Current song state
	currentID  string
	playing    bool
	loading    bool
	stream     audio.Stream
	generation uint64 // bumped whenever the loaded source is invalidated
	loadCancel context.CancelFunc

	config Config

	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewCoordinator creates a coordinator over the catalog. The initial filter
// matches every song.
func NewCoordinator(cat *catalog.Catalog, resolver SourceResolver, output audio.Output, config Config) *Coordinator {
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = DefaultResolveTimeout
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}

	var opts []queue.Option
	if config.Sampler != nil {
		opts = append(opts, queue.WithSampler(config.Sampler))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		catalog:  cat,
		resolver: resolver,
		output:   output,
		queue:    queue.New(config.QueueLength, opts...),
		history:  history.New(config.HistoryCapacity),
		config:   config,
		eventCh:  make(chan Event, config.EventBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.filtered = cat.Filter(nil)
	c.queue = c.queue.Reseed(c.filtered)
	return c
}

// Events returns the event channel. It is closed by Close.
func (c *Coordinator) Events() <-chan Event {
	return c.eventCh
}

// Select makes id the current song and starts playing it.
// Selecting the current song again restarts it from the beginning.
func (c *Coordinator) Select(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.catalog.Has(id) {
		return errors.Wrapf(ErrUnknownSong, "id %q", id)
	}
	c.selectLocked(id, false)
	return nil
}

// Play resumes the current song. Without a current song it does nothing.
// After a failed load, Play retries the load.
func (c *Coordinator) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.playLocked()
}

// PlayOrStart resumes the current song, or starts the queue when no song
// is selected. Returns false only when nothing could be started.
func (c *Coordinator) PlayOrStart() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}
	if c.currentID == "" {
		return c.advanceLocked(), nil
	}
	return true, c.playLocked()
}

// Pause pauses the current song.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.pauseLocked()
}

// OnEnded handles the end of the current song: the song goes to history
// and the next one comes from the queue. Returns false if the queue is exhausted.
func (c *Coordinator) OnEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	return c.advanceLocked()
}

// Next skips to the next song. Same as the current song ending.
func (c *Coordinator) Next() bool {
	return c.OnEnded()
}

// OnBackwards reloads the most recent history entry that still resolves.
// Returns false if history holds nothing playable.
func (c *Coordinator) OnBackwards() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", false
	}
	return c.backwardsLocked()
}

// Previous restarts the current song once it has played past
// RestartThreshold; otherwise it pauses and goes back in history.
func (c *Coordinator) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.stream != nil && c.stream.Position() >= RestartThreshold {
		c.restartLocked()
		return nil
	}
	if err := c.pauseLocked(); err != nil {
		return err
	}
	c.backwardsLocked()
	return nil
}

// OnFilterChanged installs a new filter. Nothing happens if the key is unchanged.
// The current song and play state are left alone.
func (c *Coordinator) OnFilterChanged(f filter.Filter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || f.Key == c.filter.Key {
		return false
	}

	c.filter = f
	c.filtered = c.catalog.Filter(f.Predicate)
	c.queue = c.queue.Reseed(c.filtered)
	zlog.Info().Msgf("playback: filter changed: key=%q songs=%d", f.Key, len(c.filtered))

	c.sendEventLocked(Event{
		Type:      EventFilterChanged,
		SongID:    c.currentID,
		State:     c.stateLocked(),
		FilterKey: f.Key,
	})
	return true
}

// Seek moves the loaded song to pos. The play/pause state is kept.
func (c *Coordinator) Seek(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.currentID == "" {
		return ErrNoSong
	}
	if c.stream == nil {
		return errors.Wrapf(ErrNotLoaded, "song %s", c.currentID)
	}
	if err := c.stream.Seek(pos); err != nil {
		return errors.Wrap(err, "failed to seek")
	}
	zlog.Debug().Msgf("playback: seek song=%s pos=%v", c.currentID, pos)
	return nil
}

// ReplaceCatalog swaps in a newly fetched catalog and recomputes the filtered set.
func (c *Coordinator) ReplaceCatalog(cat *catalog.Catalog) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.catalog = cat
	c.filtered = cat.Filter(c.filter.Predicate)
	c.queue = c.queue.Reseed(c.filtered)
	zlog.Info().Msgf("playback: catalog replaced: songs=%d filtered=%d", cat.Len(), len(c.filtered))

	c.sendEventLocked(Event{Type: EventCatalogChanged, SongID: c.currentID, State: c.stateLocked()})
}

// Upcoming returns the next n queued songs.
func (c *Coordinator) Upcoming(n int) []song.Song {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.queue.Peek(n)
	result := make([]song.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := c.catalog.Get(id); ok {
			result = append(result, s)
		}
	}
	return result
}

// Songs returns the songs passing the current filter, in catalog order.
func (c *Coordinator) Songs() []song.Song {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]song.Song, 0, len(c.filtered))
	for _, id := range c.filtered {
		if s, ok := c.catalog.Get(id); ok {
			result = append(result, s)
		}
	}
	return result
}

// Lookup returns a catalog song by id.
func (c *Coordinator) Lookup(id string) (song.Song, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.Get(id)
}

// Matching returns the catalog songs passing pred, in catalog order.
// It does not change the active filter.
func (c *Coordinator) Matching(pred song.Predicate) []song.Song {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.catalog.Filter(pred)
	result := make([]song.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := c.catalog.Get(id); ok {
			result = append(result, s)
		}
	}
	return result
}

// Status returns a snapshot of the current state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		SongID:        c.currentID,
		State:         c.stateLocked(),
		Loading:       c.loading,
		FilterKey:     c.filter.Key,
		FilteredCount: len(c.filtered),
		QueueLength:   c.queue.Len(),
		HistoryLength: c.history.Len(),
	}
	for _, id := range c.filtered {
		if s, ok := c.catalog.Get(id); ok {
			st.FilteredTotal += s.Length()
		}
	}
	if s, ok := c.catalog.Get(c.currentID); ok {
		st.Song = s
	}
	if c.stream != nil {
		st.Position = c.stream.Position()
	}
	return st
}

// Close stops playback, waits for pending loads and closes the event channel.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	c.releaseLocked()
	c.generation++
	c.mu.Unlock()

	c.wg.Wait()
	close(c.eventCh)
}

func (c *Coordinator) playLocked() error {
	if c.currentID == "" {
		return nil
	}
	if c.stream == nil && !c.loading {
		c.startLoadLocked(c.currentID)
		return nil
	}
	if c.playing {
		return nil
	}

	c.playing = true
	if c.stream != nil {
		if err := c.stream.Play(); err != nil {
			c.playing = false
			return errors.Wrap(err, "failed to play")
		}
	}
	c.sendEventLocked(Event{Type: EventStateChanged, SongID: c.currentID, State: c.stateLocked()})
	return nil
}

func (c *Coordinator) stateLocked() State {
	switch {
	case c.currentID == "":
		return StateIdle
	case c.playing:
		return StatePlaying
	default:
		return StatePaused
	}
}

// selectLocked makes id current. Unless reload is set, selecting the
// current song restarts the loaded source instead of loading it again.
// Must be called with lock held.
func (c *Coordinator) selectLocked(id string, reload bool) {
	if !reload && id == c.currentID && (c.stream != nil || c.loading) {
		c.restartLocked()
		return
	}
	c.startLoadLocked(id)
}

func (c *Coordinator) restartLocked() {
	c.playing = true
	if c.stream != nil {
		if err := c.stream.Restart(); err != nil {
			zlog.Warn().Err(err).Msgf("playback: restart failed: song=%s", c.currentID)
		}
		if err := c.stream.Play(); err != nil {
			zlog.Warn().Err(err).Msgf("playback: play failed: song=%s", c.currentID)
			c.playing = false
		}
	}
	zlog.Debug().Msgf("playback: restarted song=%s", c.currentID)
	c.sendEventLocked(Event{Type: EventStateChanged, SongID: c.currentID, State: c.stateLocked()})
}

// startLoadLocked replaces the current song and resolves its source in the
// background. The loader only commits its result if the generation is unchanged.
func (c *Coordinator) startLoadLocked(id string) {
	c.releaseLocked()
	c.generation++
	gen := c.generation

	c.currentID = id
	c.playing = true
	c.loading = true

	s, _ := c.catalog.Get(id)
	ctx, cancel := context.WithTimeout(c.ctx, c.config.ResolveTimeout)
	c.loadCancel = cancel

	zlog.Info().Msgf("playback: selected song=%s (%s)", id, s.DisplayName())

	c.wg.Add(1)
	go c.load(ctx, cancel, gen, s)

	c.sendEventLocked(Event{Type: EventSongChanged, SongID: id, State: c.stateLocked()})
}

func (c *Coordinator) load(ctx context.Context, cancel context.CancelFunc, gen uint64, s song.Song) {
	defer c.wg.Done()
	defer cancel()

	stream, err := c.open(ctx, gen, s)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed {
		if stream != nil {
			_ = stream.Close()
		}
		zlog.Debug().Msgf("playback: discarding stale load: song=%s", s.ID)
		return
	}

	c.loading = false
	c.loadCancel = nil

	if err != nil {
		resErr := &SourceResolutionError{SongID: s.ID, Err: err}
		zlog.Error().Err(err).Msgf("playback: failed to load song=%s", s.ID)
		c.playing = false
		c.sendEventLocked(Event{Type: EventSourceFailed, SongID: s.ID, State: c.stateLocked(), Err: resErr})
		return
	}

	c.stream = stream
	if c.playing {
		if err := stream.Play(); err != nil {
			zlog.Warn().Err(err).Msgf("playback: play failed: song=%s", s.ID)
			c.playing = false
		}
	}
	c.sendEventLocked(Event{Type: EventSongLoaded, SongID: s.ID, State: c.stateLocked()})
}

// open resolves and loads the source. Runs without the lock.
func (c *Coordinator) open(ctx context.Context, gen uint64, s song.Song) (audio.Stream, error) {
	source, err := c.resolver.ResolveSource(ctx, s.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve source")
	}

	media := audio.Media{SongID: s.ID, Source: source, Duration: s.Length()}
	stream, err := c.output.Open(ctx, media, func() {
		c.onStreamEnded(gen)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open source")
	}
	return stream, nil
}

// onStreamEnded is the ended callback of the stream loaded under gen.
func (c *Coordinator) onStreamEnded(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation {
		return
	}
	c.advanceLocked()
}

// advanceLocked pushes the current song to history and selects the next queued song.
func (c *Coordinator) advanceLocked() bool {
	if c.currentID != "" && !c.history.Push(c.currentID) {
		zlog.Debug().Msgf("playback: history full, dropped song=%s", c.currentID)
	}

	id, ok, next := c.queue.Next(c.filtered)
	c.queue = next
	if !ok {
		zlog.Info().Msg("playback: queue exhausted")
		c.clearLocked()
		c.sendEventLocked(Event{Type: EventQueueExhausted, State: c.stateLocked()})
		return false
	}

	c.selectLocked(id, false)
	return true
}

func (c *Coordinator) backwardsLocked() (string, bool) {
	id, ok := c.history.Pop(c.catalog.Has)
	if !ok {
		return "", false
	}
	c.selectLocked(id, true)
	return id, true
}

func (c *Coordinator) pauseLocked() error {
	if c.currentID == "" || !c.playing {
		return nil
	}
	c.playing = false
	if c.stream != nil {
		if err := c.stream.Pause(); err != nil {
			return errors.Wrap(err, "failed to pause")
		}
	}
	c.sendEventLocked(Event{Type: EventStateChanged, SongID: c.currentID, State: c.stateLocked()})
	return nil
}

// clearLocked drops the current song entirely.
func (c *Coordinator) clearLocked() {
	c.releaseLocked()
	c.generation++
	c.currentID = ""
	c.playing = false
	c.loading = false
}

// releaseLocked cancels any pending load and closes the loaded stream.
func (c *Coordinator) releaseLocked() {
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			zlog.Debug().Err(err).Msg("playback: closing stream")
		}
		c.stream = nil
	}
	c.loading = false
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Coordinator) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	default:
		zlog.Debug().Msgf("playback: event channel full, dropped %s", e.Type)
	}
}
