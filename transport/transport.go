// Package transport is the VEN side HTTP POST channel to the VTN.
// One request per connection, fixed 5s timeout, optional mutual TLS with
// the cipher and protocol version pinned to what the VTN fleet accepts.
package transport

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"mime"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/oadr2-ven/log2"
)

const (
	ContentType    = "application/xml"
	UserAgent      = "EnerNOC VEN"
	RequestTimeout = 5 * time.Second
)

type Options struct {
	// CertFile+KeyFile enable mutual TLS.
	CertFile string
	KeyFile  string
	// CAFile enables peer verification. Empty CAFile with mutual TLS
	// configured skips peer verification. Insecure, kept for field
	// compatibility with VTNs running private PKI.
	CAFile string

	// RoundTripper overrides the network stack, tests only.
	RoundTripper http.RoundTripper

	Log *log2.Log
}

// StatusError is a complete 4xx/5xx response. The transport never retries,
// callers decide.
type StatusError struct {
	Code   int
	Status string
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status=%s body=%s", e.Status, e.Body)
}

// AsStatusError unwraps annotations to tell HTTP status errors from
// connection/TLS errors.
func AsStatusError(err error) (*StatusError, bool) {
	se, ok := errors.Cause(err).(*StatusError)
	return se, ok
}

type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// MediaType strips parameters like charset from the Content-Type header.
func (r *Response) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return r.ContentType
	}
	return mt
}

type Transport struct {
	c   *http.Client
	log *log2.Log
}

func New(opt Options) (*Transport, error) {
	rt := opt.RoundTripper
	if rt == nil {
		tlsconf, err := TLSConfig(opt)
		if err != nil {
			return nil, errors.Annotate(err, "transport tls")
		}
		rt = &http.Transport{
			TLSClientConfig: tlsconf,
			// connections are per request, VTN polls are minutes apart
			DisableKeepAlives: true,
		}
	}
	t := &Transport{
		c: &http.Client{
			Transport: rt,
			Timeout:   RequestTimeout,
		},
		log: opt.Log,
	}
	return t, nil
}

// TLSConfig builds the pinned client TLS policy: client certificate,
// exactly TLS 1.0 and TLS_RSA_WITH_AES_256_CBC_SHA. Returns nil when no
// client certificate is configured.
func TLSConfig(opt Options) (*tls.Config, error) {
	if opt.CertFile == "" && opt.KeyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(opt.CertFile, opt.KeyFile)
	if err != nil {
		return nil, errors.Annotatef(err, "client cert=%s key=%s", opt.CertFile, opt.KeyFile)
	}
	tc := &tls.Config{
		Certificates: []tls.Certificate{cert},
		CipherSuites: []uint16{tls.TLS_RSA_WITH_AES_256_CBC_SHA},
		MinVersion:   tls.VersionTLS10,
		MaxVersion:   tls.VersionTLS10,
	}
	if opt.CAFile != "" {
		pem, err := ioutil.ReadFile(opt.CAFile)
		if err != nil {
			return nil, errors.Annotatef(err, "ca bundle=%s", opt.CAFile)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.NotValidf("ca bundle=%s no certificates", opt.CAFile)
		}
		tc.RootCAs = pool
	} else {
		opt.Log.Errorf("transport: no ca bundle, peer verification disabled")
		tc.InsecureSkipVerify = true
	}
	return tc, nil
}

// Send POSTs body and reads the whole response.
// Connection/TLS failure or timeout -> annotated error.
// 4xx/5xx -> *StatusError with the body attached.
func (t *Transport) Send(uri string, body []byte) (*Response, error) {
	req, err := http.NewRequest(http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Annotatef(err, "request uri=%s", uri)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Content-Type", ContentType)

	resp, err := t.c.Do(req)
	if err != nil {
		return nil, errors.Annotatef(err, "send uri=%s", uri)
	}
	defer resp.Body.Close()
	rb, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Annotatef(err, "response body uri=%s", uri)
	}
	t.log.Debugf("transport: uri=%s status=%s len=%d", uri, resp.Status, len(rb))

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: rb}
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        rb,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
