// Package soap provides a minimal SOAP 1.1 transport used by the ERP and CRM
// clients. It owns envelope framing, basic-auth, timeouts and fault decoding;
// operation payloads are plain encoding/xml structs owned by the callers.
// This is part of the platform layer and contains no business logic.
package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"taller_portal_backend/platform/logger"
)

const envelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

// Fault is a decoded SOAP fault. Upstream systems attach a correlation id to
// the fault detail; when present it is captured for operator diagnostics.
type Fault struct {
	Code          string
	Message       string
	TransactionID string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.TransactionID != "" {
		return fmt.Sprintf("soap fault %s: %s (transaction %s)", f.Code, f.Message, f.TransactionID)
	}
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.Message)
}

// IsFault reports whether err is (or wraps) a SOAP fault and returns it.
func IsFault(err error) (*Fault, bool) {
	for err != nil {
		if f, ok := err.(*Fault); ok {
			return f, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// Client posts SOAP envelopes to a single endpoint with basic auth.
type Client struct {
	system   string
	endpoint string
	username string
	password string
	http     *http.Client
	log      *logger.Logger
}

// NewClient creates a SOAP client for one upstream system. The timeout covers
// connection establishment and the full response read.
func NewClient(system, endpoint, username, password string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		system:   system,
		endpoint: strings.TrimSpace(endpoint),
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

type requestEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	NS      string   `xml:"xmlns:soapenv,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    requestBody
}

type requestBody struct {
	XMLName xml.Name `xml:"soapenv:Body"`
	Payload interface{}
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *faultPayload `xml:"Fault"`
		Inner []byte        `xml:",innerxml"`
	} `xml:"Body"`
}

type faultPayload struct {
	Code   string `xml:"faultcode"`
	Reason string `xml:"faultstring"`
	Detail struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"detail"`
}

var transactionIDPattern = regexp.MustCompile(`<[^<>]*TransactionID[^>]*>([^<]+)<`)

// Call marshals request into an envelope, posts it with the given SOAPAction
// and decodes the response body element into response. The raw response bytes
// are returned as well so callers can apply pattern-level fallbacks for fields
// the structured decoder is known to drop.
func (c *Client) Call(ctx context.Context, action string, request, response interface{}) ([]byte, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("%s endpoint not configured", c.system)
	}

	env := requestEnvelope{NS: envelopeNS, Body: requestBody{Payload: request}}
	payload, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", c.system, err)
	}

	body := append([]byte(xml.Header), payload...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", action)
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if c.log != nil {
		c.log.SOAPCall(c.system, action, time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.system, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.system, err)
	}

	if fault, perr := DecodeResponse(raw, response); perr != nil {
		return raw, perr
	} else if fault != nil {
		return raw, fault
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return raw, fmt.Errorf("%s returned status %d", c.system, resp.StatusCode)
	}

	return raw, nil
}

// DecodeResponse unpacks a SOAP envelope. It returns the decoded fault if the
// body carries one, otherwise it unmarshals the body element into response.
// It is exported separately so response parsing can be tested against
// recorded payloads without a live endpoint.
func DecodeResponse(raw []byte, response interface{}) (*Fault, error) {
	var env responseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Body.Fault != nil {
		fault := &Fault{
			Code:    strings.TrimSpace(env.Body.Fault.Code),
			Message: strings.TrimSpace(env.Body.Fault.Reason),
		}
		if m := transactionIDPattern.FindSubmatch(env.Body.Fault.Detail.Inner); m != nil {
			fault.TransactionID = strings.TrimSpace(string(m[1]))
		}
		return fault, nil
	}

	if response == nil {
		return nil, nil
	}

	if err := xml.Unmarshal(env.Body.Inner, response); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return nil, nil
}
