// Package main obtains a Spotify refresh token for the song server's
// spotify library source.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/rhythmical/internal/infra/spotify"
)

var (
	app          = kingpin.New("rhythmical-auth", "Obtain a Spotify refresh token for rhythmical-server")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	timeout      = app.Flag("timeout", "How long to wait for authorization").Default("5m").Duration()
)

const completePage = `<!DOCTYPE html>
<html>
<head><title>rhythmical - Authorization Complete</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
  <h1>Authorization Complete</h1>
  <p>You can close this window and return to the terminal.</p>
</body>
</html>
`

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	state := uuid.New().String()
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(fmt.Sprintf("http://127.0.0.1:%d/callback", *port)),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(spotify.Scopes...),
	)

	tokens := make(chan *oauth2.Token, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if st := r.FormValue("state"); st != state {
			http.Error(w, "State mismatch", http.StatusForbidden)
			log.Printf("State mismatch: %s", st)
			return
		}
		token, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusForbidden)
			log.Printf("Failed to get token: %v", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, completePage)

		select {
		case tokens <- token:
		default:
		}
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize rhythmical:")
	fmt.Println()
	fmt.Println(auth.AuthURL(state))
	fmt.Println()
	fmt.Println("Waiting for authorization...")

	var token *oauth2.Token
	select {
	case token = <-tokens:
	case <-time.After(*timeout):
		log.Fatalf("Timed out after %v waiting for authorization", *timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Authorization Successful ===")
	fmt.Println()
	fmt.Println("Add this to config/server.yaml:")
	fmt.Println()
	fmt.Println("spotify:")
	fmt.Printf("  refresh_token: %q\n", token.RefreshToken)
	fmt.Println()
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=%q\n", token.RefreshToken)
}
