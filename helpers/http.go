package helpers

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"net/http"
	"sync"
)

// MockHTTP is a http.RoundTripper for tests without listening sockets.
// Either set Fun for full control or Header/Body/Err for a canned response.
// Requests are recorded with bodies already read.
type MockHTTP struct {
	Fun    func(*http.Request) (*http.Response, error)
	Header []byte
	Body   []byte
	Err    error

	mu       sync.Mutex
	requests []MockRequest
}

type MockRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

func (m *MockHTTP) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = ioutil.ReadAll(req.Body)
		_ = req.Body.Close()
		req.Body = ioutil.NopCloser(bytes.NewReader(body))
	}
	m.mu.Lock()
	m.requests = append(m.requests, MockRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	m.mu.Unlock()

	if m.Fun != nil {
		return m.Fun(req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	header := m.Header
	if header == nil {
		header = []byte("HTTP/1.0 200 OK\r\n\r\n")
	}
	rb := make([]byte, 0, len(header)+len(m.Body))
	rb = append(rb, header...)
	rb = append(rb, m.Body...)
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(rb)), req)
}

func (m *MockHTTP) Requests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := make([]MockRequest, len(m.requests))
	copy(rs, m.requests)
	return rs
}
