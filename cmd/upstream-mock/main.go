// Command upstream-mock serves canned movie-provider and box office responses
// for local runs and contract tests.
package main

import (
	_ "embed"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
)

//go:embed fixtures.json
var defaultFixtures []byte

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "", "path to a fixtures file (defaults to the embedded set)")
		apiKey  = flag.String("api-key", "", "reject requests whose api key differs (empty accepts any)")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	payload := defaultFixtures
	if *data != "" {
		file, err := os.ReadFile(*data)
		if err != nil {
			log.Fatalf("read mock data: %v", err)
		}
		payload = file
	}

	var fx fixtures
	if err := json.Unmarshal(payload, &fx); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	var handler http.Handler = newMux(fx, *apiKey)
	if *verbose {
		handler = logRequests(handler)
		log.Printf("loaded %d movies and %d ranking rows", len(fx.Movies), len(fx.Daily))
	}

	addr := ":" + *port
	log.Printf("upstream mock listening on %s (provider at /3, box office at /boxoffice)", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
