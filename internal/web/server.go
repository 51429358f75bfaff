// Package web serves a read-only JSON view of one loaded analysis
// snapshot, for browsing a result set without the interactive session.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os/exec"
	"runtime"

	"github.com/roypat/volcano/internal/explore"
)

//go:embed static
var staticFiles embed.FS

// Snapshot is the immutable result set the server exposes: the grouped
// table plus its dimension names. Nothing mutates it; there are no
// sessions.
type Snapshot struct {
	Groups     []*explore.Group
	Dimensions []string
}

type Server struct {
	snapshot Snapshot
	addr     string
}

func NewServer(snapshot Snapshot, addr string) *Server {
	return &Server{snapshot: snapshot, addr: addr}
}

func (s *Server) Start(openBrowser bool) error {
	mux := http.NewServeMux()

	appFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(appFS)))

	mux.HandleFunc("/api/dimensions", s.handleDimensions)
	mux.HandleFunc("/api/groups", s.handleGroups)
	mux.HandleFunc("/api/volcano", s.handleVolcano)
	mux.HandleFunc("/api/histogram", s.handleHistogram)

	if openBrowser {
		url := fmt.Sprintf("http://localhost%s", s.addr)
		go openURL(url)
	}

	fmt.Printf("Starting server at http://localhost%s\n", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	}
	if cmd != nil {
		_ = cmd.Start()
	}
}
