// Package portaltest runs an in-memory field operations portal for tests.
package portaltest

import (
	"net"
	"sync"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// Route is a canned portal response
type Route struct {
	Status int
	Body   string
}

// Request is what the portal received
type Request struct {
	Method string
	Path   string
	Fields map[string][]string
	Files  []string
}

// Server answers "METHOD /path" keys from its route table; anything else
// gets the portal's 404 envelope.
type Server struct {
	ln *fasthttputil.InmemoryListener

	mu       sync.Mutex
	routes   map[string]Route
	requests []Request
}

// NewServer starts a portal that is shut down when the test ends
func NewServer(t testing.TB, routes map[string]Route) *Server {
	t.Helper()

	s := &Server{
		ln:     fasthttputil.NewInmemoryListener(),
		routes: make(map[string]Route, len(routes)),
	}
	for key, route := range routes {
		s.routes[key] = route
	}

	server := &fasthttp.Server{Handler: s.handle}
	go func() {
		_ = server.Serve(s.ln)
	}()
	t.Cleanup(func() {
		_ = s.ln.Close()
	})
	return s
}

// Dial connects to the server; it satisfies fasthttp.DialFunc
func (s *Server) Dial(addr string) (net.Conn, error) {
	return s.ln.Dial()
}

// Handle adds or replaces a route
func (s *Server) Handle(key string, route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[key] = route
}

// Requests returns a copy of the requests received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests matched key
func (s *Server) Count(key string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method+" "+r.Path == key {
			n++
		}
	}
	return n
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	req := Request{
		Method: string(ctx.Method()),
		Path:   string(ctx.Path()),
	}
	if form, err := ctx.MultipartForm(); err == nil {
		req.Fields = form.Value
		for _, headers := range form.File {
			for _, fh := range headers {
				req.Files = append(req.Files, fh.Filename)
			}
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	route, ok := s.routes[req.Method+" "+req.Path]
	s.mu.Unlock()

	ctx.SetContentType("application/json")
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString(`{"success": false, "message": "not found"}`)
		return
	}
	ctx.SetStatusCode(route.Status)
	ctx.SetBodyString(route.Body)
}
