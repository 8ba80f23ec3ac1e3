// Package main provides the player control CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/rhythmical/internal/api/connect"
	"github.com/osa030/rhythmical/internal/app/notification"
	"github.com/osa030/rhythmical/internal/app/playback"
	"github.com/osa030/rhythmical/internal/domain/song"
)

var (
	app    = kingpin.New("rhythmical-ctl", "rhythmical player control client")
	server = app.Flag("server", "Player control address").Default("http://127.0.0.1:8090").Envar("RHYTHMICAL_CONTROL_URL").String()
	token  = app.Flag("token", "Control token (or set RHYTHMICAL_CONTROL_TOKEN env)").Envar("RHYTHMICAL_CONTROL_TOKEN").String()

	statusCmd = app.Command("status", "Show the current song and queue").Default()
	playCmd   = app.Command("play", "Resume playback")
	pauseCmd  = app.Command("pause", "Pause playback")
	nextCmd   = app.Command("next", "Skip to the next song")
	prevCmd   = app.Command("prev", "Restart the song or go back").Alias("previous")

	selectCmd = app.Command("select", "Play a song by id")
	selectID  = selectCmd.Arg("song-id", "Song ID").Required().String()

	seekCmd      = app.Command("seek", "Jump to a position in the current song")
	seekPosition = seekCmd.Arg("position", "Position as m:ss or seconds").Required().String()

	filterCmd      = app.Command("filter", "Change the playlist and search text")
	filterPlaylist = filterCmd.Flag("playlist", "Playlist name (default playlist when empty)").Short('p').String()
	filterSearch   = filterCmd.Flag("search", "Search text (regular expression)").Short('s').String()

	upcomingCmd   = app.Command("upcoming", "List the next queued songs")
	upcomingCount = upcomingCmd.Flag("count", "Number of songs").Short('n').Int()

	songsCmd      = app.Command("songs", "List songs")
	songsPlaylist = songsCmd.Flag("playlist", "Playlist name (active filter when empty)").Short('p').String()
	songsSearch   = songsCmd.Flag("search", "Search text").Short('s').String()
	songsSort     = songsCmd.Flag("sort", "Sort by title, genre, artist, album, duration or rating").Default(string(song.DefaultSort)).Enum(sortFields()...)
	songsDesc     = songsCmd.Flag("desc", "Sort descending").Bool()
	songsLimit    = songsCmd.Flag("limit", "Maximum songs to print").Default("50").Int()

	playlistsCmd = app.Command("playlists", "List playlists").Alias("list")
	reloadCmd    = app.Command("reload", "Fetch the song list from the server again")

	subscribeCmd = app.Command("subscribe", "Print playback notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	if command == subscribeCmd.FullCommand() {
		subscribe(client)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = printStatusOf(client.GetStatus(ctx))
	case playCmd.FullCommand():
		err = printStatusOf(client.Play(ctx))
	case pauseCmd.FullCommand():
		err = printStatusOf(client.Pause(ctx))
	case nextCmd.FullCommand():
		err = printStatusOf(client.Next(ctx))
	case prevCmd.FullCommand():
		err = printStatusOf(client.Previous(ctx))
	case selectCmd.FullCommand():
		err = printStatusOf(client.Select(ctx, *selectID))
	case seekCmd.FullCommand():
		err = seek(ctx, client)
	case filterCmd.FullCommand():
		err = setFilter(ctx, client)
	case upcomingCmd.FullCommand():
		err = upcoming(ctx, client)
	case songsCmd.FullCommand():
		err = listSongs(ctx, client)
	case playlistsCmd.FullCommand():
		err = listPlaylists(ctx, client)
	case reloadCmd.FullCommand():
		err = reload(ctx, client)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printStatusOf(s *apiconnect.StatusResponse, err error) error {
	if err != nil {
		return err
	}

	fmt.Println("\n=== PLAYER STATUS ===")
	if s.Song != nil {
		fmt.Printf("%s %s\n", formatState(s.State, s.Loading), s.Song.DisplayName())
		if s.Song.Album != "" {
			fmt.Printf("  Album: %s\n", s.Song.Album)
		}
		fmt.Printf("  Position: %s / %s\n",
			song.FormatDuration(int(s.PositionMs/1000)), song.FormatDuration(s.Song.Duration))
		fmt.Printf("  Rating: %s\n", song.Stars(s.Song.Rating))
		fmt.Printf("  ID: %s\n", s.Song.ID)
	} else {
		fmt.Println("No song selected")
	}

	fmt.Printf("\nPlaylist: %s", s.Playlist)
	if s.Search != "" {
		fmt.Printf("  Search: %q", s.Search)
	}
	fmt.Println()
	fmt.Printf("  %s\n", song.Summary(s.FilteredCount, time.Duration(s.FilteredSec)*time.Second))
	fmt.Printf("Queue: %d  History: %d\n", s.QueueLength, s.HistoryLength)

	if len(s.Upcoming) > 0 {
		fmt.Println("\nUp next:")
		printSongs(s.Upcoming)
	}
	fmt.Println()
	return nil
}

func seek(ctx context.Context, client *apiconnect.Client) error {
	seconds, err := song.ParseDuration(*seekPosition)
	if err != nil {
		return err
	}
	return printStatusOf(client.Seek(ctx, time.Duration(seconds)*time.Second))
}

func setFilter(ctx context.Context, client *apiconnect.Client) error {
	resp, err := client.SetFilter(ctx, *filterPlaylist, *filterSearch)
	if err != nil {
		return err
	}
	if resp.Changed {
		fmt.Printf("Filter set to %q (%d songs)\n", resp.FilterKey, resp.FilteredCount)
	} else {
		fmt.Printf("Filter unchanged (%d songs)\n", resp.FilteredCount)
	}
	return nil
}

func upcoming(ctx context.Context, client *apiconnect.Client) error {
	resp, err := client.GetUpcoming(ctx, *upcomingCount)
	if err != nil {
		return err
	}
	if len(resp.Songs) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}
	printSongs(resp.Songs)
	return nil
}

func listSongs(ctx context.Context, client *apiconnect.Client) error {
	resp, err := client.ListSongs(ctx, &apiconnect.ListSongsRequest{
		Playlist: *songsPlaylist,
		Search:   *songsSearch,
		Sort:     *songsSort,
		Desc:     *songsDesc,
		Limit:    *songsLimit,
	})
	if err != nil {
		return err
	}
	printSongs(resp.Songs)
	if resp.Total > len(resp.Songs) {
		fmt.Printf("  ... and %d more\n", resp.Total-len(resp.Songs))
	}
	fmt.Println(song.Summary(resp.Total, time.Duration(resp.TotalSec)*time.Second))
	return nil
}

func reload(ctx context.Context, client *apiconnect.Client) error {
	resp, err := client.Reload(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Catalog reloaded: %d songs, %d in the active filter\n", resp.SongCount, resp.FilteredCount)
	return nil
}

func listPlaylists(ctx context.Context, client *apiconnect.Client) error {
	resp, err := client.ListPlaylists(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Playlists (%d):\n", len(resp.Playlists))
	for _, p := range resp.Playlists {
		marker := " "
		if p.Active {
			marker = "*"
		}
		fmt.Printf(" %s %-12s %5d  %s\n", marker, p.Name, p.SongCount, p.Description)
	}
	return nil
}

func printSongs(songs []song.Song) {
	for i, s := range songs {
		fmt.Printf("  %2d. %s  %s  %s  [%s]\n",
			i+1, song.Stars(s.Rating), song.FormatDuration(s.Duration), s.DisplayName(), s.ID)
	}
}

func subscribe(client *apiconnect.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	err := client.Subscribe(ctx, func(n *notification.Notification) error {
		printNotification(n)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nUnsubscribing...")
}

func printNotification(n *notification.Notification) {
	fmt.Printf("[%d] %s ", n.SequenceNo, n.Timestamp.Local().Format(time.TimeOnly))

	switch n.Type {
	case "initial_state":
		fmt.Print("=== INITIAL STATE === ")
	case "song_changed":
		fmt.Print("=== SONG CHANGED === ")
	case "state_changed":
		fmt.Print("=== STATE CHANGED === ")
	case "filter_changed":
		fmt.Printf("=== FILTER CHANGED (%s) === ", n.FilterKey)
	case "queue_exhausted":
		fmt.Print("=== QUEUE EXHAUSTED === ")
	case "source_failed":
		fmt.Print("=== SOURCE FAILED === ")
	case "catalog_changed":
		fmt.Print("=== CATALOG RELOADED === ")
	default:
		fmt.Printf("=== %s === ", n.Type)
	}

	if n.SongID != "" {
		name := n.Title
		if n.Artist != "" {
			name = n.Artist + " - " + n.Title
		}
		fmt.Printf("%s %s [%s]", formatState(n.State, false), name, n.SongID)
	}
	if n.Message != "" {
		fmt.Printf(" (%s)", n.Message)
	}
	fmt.Println()
}

func formatState(state string, loading bool) string {
	if loading {
		return "⏳"
	}
	switch playback.ParseState(state) {
	case playback.StatePlaying:
		return "▶️ "
	case playback.StatePaused:
		return "⏸ "
	default:
		return "⏹ "
	}
}

func sortFields() []string {
	fields := make([]string, 0, len(song.SortFields))
	for _, f := range song.SortFields {
		fields = append(fields, string(f))
	}
	return fields
}
