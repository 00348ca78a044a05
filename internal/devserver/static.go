package devserver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const liveReloadSnippet = `<script>
(function () {
  var ws = new WebSocket("ws://" + location.host + "/__livereload");
  ws.onmessage = function () { location.reload(); };
  ws.onclose = function () { setTimeout(function () { location.reload(); }, 1000); };
})();
</script>
`

// StaticServer serves the client build directory with live reload. The
// configured API base URL is exposed to the client as a generated config
// script, so the build locates the API without rebuilding.
type StaticServer struct {
	dir        string
	apiBaseURL string
	hub        *LiveReloadHub
	logger     *log.Logger
}

// NewStaticServer initializes a new StaticServer over the given directory.
func NewStaticServer(dir, apiBaseURL string, hub *LiveReloadHub, logger *log.Logger) *StaticServer {
	if logger == nil {
		logger = log.New()
	}
	return &StaticServer{dir: dir, apiBaseURL: apiBaseURL, hub: hub, logger: logger}
}

// Handler returns the dev server's HTTP handler.
func (s *StaticServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/__livereload", s.hub.HandleWS)
	mux.HandleFunc("/__config.js", s.handleConfig)
	mux.HandleFunc("/", s.handleStatic)
	return mux
}

// ListenAndServe runs the dev server until the context is cancelled.
func (s *StaticServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(log.Fields{
			"addr": addr,
			"dir":  s.dir,
		}).Info("client dev server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *StaticServer) handleConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprintf(w, "window.__ADHUNIK_API_BASE__ = %q;\n", s.apiBaseURL)
}

func (s *StaticServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.dir, filepath.Clean("/"+r.URL.Path))

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		path = filepath.Join(path, "index.html")
		info, err = os.Stat(path)
	}
	if err != nil {
		// single-page app fallback
		path = filepath.Join(s.dir, "index.html")
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	if strings.HasSuffix(path, ".html") {
		s.serveHTML(w, r, path)
		return
	}
	http.ServeFile(w, r, path)
}

// serveHTML injects the live reload snippet before </body> so the browser
// reconnects and reloads on change.
func (s *StaticServer) serveHTML(w http.ResponseWriter, _ *http.Request, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, "unable to read page", http.StatusInternalServerError)
		return
	}

	if idx := bytes.LastIndex(data, []byte("</body>")); idx != -1 {
		var buf bytes.Buffer
		buf.Write(data[:idx])
		buf.WriteString(liveReloadSnippet)
		buf.Write(data[idx:])
		data = buf.Bytes()
	} else {
		data = append(data, []byte(liveReloadSnippet)...)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}
