package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"plotstation/config"
	"plotstation/jobs"
	"plotstation/logging"
	"plotstation/types"
	"plotstation/utils"
)

// AppState is everything the handlers may see. They reach the plotter only
// through the mailbox.
type AppState struct {
	Mailbox   *jobs.Mailbox
	Port      string
	Simulated bool

	// Roots are the directories jobs may be submitted from.
	Roots []string

	// StatusInterval is how often /ws pushes the station status.
	StatusInterval time.Duration
}

func (s *AppState) Status() types.StationStatus {
	busy, label := s.Mailbox.Status()
	status := types.StationStatus{
		Busy:      busy,
		Label:     label,
		Simulated: s.Simulated,
		Port:      s.Port,
	}
	if last, ok := s.Mailbox.Last(); ok {
		status.LastJob = &last
	}
	return status
}

// resolveJobPath returns the real path of a submitted file together with
// http.StatusOK, or the status to refuse it with. The path must stay inside
// one of the roots after symlinks are resolved.
func (s *AppState) resolveJobPath(path string) (string, int) {
	if !s.within(path, false) {
		return "", http.StatusForbidden
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", http.StatusNotFound
	}
	if info, err := os.Stat(resolved); err != nil || info.IsDir() {
		return "", http.StatusNotFound
	}
	if !s.within(resolved, true) {
		return "", http.StatusForbidden
	}
	return resolved, http.StatusOK
}

func (s *AppState) within(path string, resolveRoots bool) bool {
	for _, root := range s.Roots {
		if root == "" {
			continue
		}
		if resolveRoots {
			resolved, err := filepath.EvalSymlinks(root)
			if err != nil {
				continue
			}
			root = resolved
		}
		if utils.PathWithin(path, root) {
			return true
		}
	}
	return false
}

func NewMux(state *AppState) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		indexHandler(w, r, state)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		statusHandler(w, r, state)
	})
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		submitHandler(w, r, state)
	})
	mux.HandleFunc("/jobs/last", func(w http.ResponseWriter, r *http.Request) {
		lastJobHandler(w, r, state)
	})
	mux.HandleFunc("/logs/stream", func(w http.ResponseWriter, r *http.Request) {
		logsStreamHandler(w, r, state)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		wsHandler(w, r, state)
	})
	return mux
}

func NewServer(addr string, state *AppState) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewMux(state),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// StartServer serves until ctx is done, then shuts down gracefully.
func StartServer(ctx context.Context, addr string, state *AppState) error {
	if state.StatusInterval <= 0 {
		state.StatusInterval = config.WS_STATUS_INTERVAL
	}
	srv := NewServer(addr, state)

	errCh := make(chan error, 1)
	go func() {
		logging.Info("web", "web server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
