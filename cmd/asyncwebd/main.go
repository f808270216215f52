// Command asyncwebd is a minimal embedder binary demonstrating the
// programmatic wiring the server expects: no CLI, no environment
// variables, no persisted state — configuration is exclusively
// constructed in code. It serves a static directory, one SSE endpoint
// that ticks a heartbeat, and a JSON status endpoint.
package main

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/response"
	"github.com/yourusername/asyncweb/pkg/asyncweb/server"
	"github.com/yourusername/asyncweb/pkg/asyncweb/sse"
	"github.com/yourusername/asyncweb/pkg/asyncweb/static"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := server.DefaultConfig()
	cfg.Addr = ":8080"

	router := server.NewRouter(nil)

	wwwFS := os.DirFS("./www")
	router.AddHandler(static.New("/", wwwFS, cfg))

	events := sse.New("/events")
	router.AddHandler(events)

	status := server.NewPathHandler("/status", request.MethodGET)
	status.OnRequest = func(r *request.Request) {
		resp, err := response.NewJSONResponse(200, map[string]any{
			"scheduler_len": 0,
		})
		if err != nil {
			r.Send(response.NewResponse(500, nil, false))
			return
		}
		r.Send(resp)
	}
	router.AddHandler(status)

	srv := server.New(cfg, router)

	go heartbeat(srv, events)

	log.Info().Str("addr", cfg.Addr).Msg("asyncwebd: listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("asyncwebd: server stopped")
	}
}

// heartbeat periodically pushes a counter to every connected SSE client,
// demonstrating Source.Send outside of a request/response cycle.
func heartbeat(srv *server.Server, events *sse.Source) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	var n uint64
	for range ticker.C {
		n++
		if events.Count() == 0 {
			continue
		}
		events.Send(strconv.FormatUint(n, 10), "tick", n, 0)
	}
}
