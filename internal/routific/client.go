package routific

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/field-scheduler/internal/dispatch"
)

// Client submits single-day vehicle-routing feasibility queries to the
// Routific VRP endpoint. It is stateless; one Check per submission attempt.
type Client struct {
	hc    *http.Client
	url   string
	token string
}

func New(url, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		hc:    &http.Client{Timeout: timeout},
		url:   url,
		token: token,
	}
}

// Verdict is the interpreted optimizer answer. Unserved is non-empty exactly
// when Feasible is false.
type Verdict struct {
	Feasible bool
	Unserved []string
}

// ServiceError covers transport failures, timeouts and non-2xx responses.
// Status is zero when no HTTP response was received.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("routing service: %s (status=%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("routing service: %s", e.Message)
}

type checkRequest struct {
	Visits map[string]dispatch.Visit       `json:"visits"`
	Fleet  map[string]dispatch.FleetMember `json:"fleet"`
}

type checkResponse struct {
	Unserved []string `json:"unserved"`
	Error    string   `json:"error"`
	Message  string   `json:"message"`
}

// Check runs one feasibility query. A non-2xx answer, any transport error
// and a success body that does not parse all become a *ServiceError; an
// answer listing unserved visits becomes an infeasible verdict carrying
// their identities.
func (c *Client) Check(ctx context.Context, visits map[string]dispatch.Visit, fleet map[string]dispatch.FleetMember) (Verdict, error) {
	body, err := json.Marshal(checkRequest{Visits: visits, Fleet: fleet})
	if err != nil {
		return Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "bearer "+c.token)

	res, err := c.hc.Do(req)
	if err != nil {
		return Verdict{}, &ServiceError{Message: err.Error()}
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return Verdict{}, &ServiceError{Status: res.StatusCode, Message: err.Error()}
	}

	var parsed checkResponse
	parseErr := json.Unmarshal(b, &parsed)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := parsed.Error
		if msg == "" {
			msg = parsed.Message
		}
		if msg == "" {
			msg = "request failed"
		}
		return Verdict{}, &ServiceError{Status: res.StatusCode, Message: msg}
	}

	// A success status with a body we cannot read is not a feasible answer.
	if parseErr != nil {
		return Verdict{}, &ServiceError{Status: res.StatusCode, Message: fmt.Sprintf("invalid response body: %v", parseErr)}
	}

	if len(parsed.Unserved) > 0 {
		return Verdict{Feasible: false, Unserved: parsed.Unserved}, nil
	}
	return Verdict{Feasible: true}, nil
}
