package capacity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPStore talks to a remote experiences service that owns the
// capacity records.  It is used in deployments where capacity is not
// colocated with this controller.  The remote service must implement:
//
//	GET  {base}/experiences/{id}/capacity
//	     -> 200 {"capacity_total": T, "capacity_remaining": R} | 404
//	POST {base}/experiences/{id}/capacity
//	     body {"delta": -n, "min_remaining": n}
//	     -> 200 {"capacity_remaining": R}
//	        409 precondition failed (insufficient capacity)
//	        404 unknown experience
//
// The decrement token travels in the Idempotency-Key header so the
// remote side can deduplicate a retried request whose response was
// lost.  Any transport error or 5xx is transient from the ledger's
// point of view.
type HTTPStore struct {
	base   string
	client *http.Client
}

// NewHTTPStore returns an HTTPStore for the given base URL.  Each
// request carries the provided timeout so a hung remote cannot stall
// the admission path indefinitely.
func NewHTTPStore(base string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPStore{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

type capacityUpdateReq struct {
	Delta        int64 `json:"delta"`
	MinRemaining int64 `json:"min_remaining"`
}

type capacityResp struct {
	Total     int64 `json:"capacity_total"`
	Remaining int64 `json:"capacity_remaining"`
}

// Get reads the remote capacity record.
func (s *HTTPStore) Get(ctx context.Context, experienceID uint64) (Record, error) {
	url := fmt.Sprintf("%s/experiences/%d/capacity", s.base, experienceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Record{}, err
	}
	var body capacityResp
	if err := s.do(req, &body); err != nil {
		return Record{}, err
	}
	return Record{Total: body.Total, Remaining: body.Remaining}, nil
}

// ConditionalDecrement posts a negative delta with a floor.
func (s *HTTPStore) ConditionalDecrement(ctx context.Context, experienceID uint64, n int64, token string) (int64, error) {
	body := capacityUpdateReq{Delta: -n, MinRemaining: n}
	remaining, err := s.update(ctx, experienceID, body, token)
	return remaining, err
}

// Release posts a positive delta; the remote caps at total.  The
// token rides along in the Idempotency-Key header so the remote side
// can invalidate its dedup marker for the decrement being undone.
func (s *HTTPStore) Release(ctx context.Context, experienceID uint64, n int64, token string) (int64, error) {
	return s.update(ctx, experienceID, capacityUpdateReq{Delta: n}, token)
}

// Init creates or reseeds the remote record.
func (s *HTTPStore) Init(ctx context.Context, experienceID uint64, total int64) error {
	url := fmt.Sprintf("%s/experiences/%d/capacity", s.base, experienceID)
	payload, err := json.Marshal(map[string]int64{"capacity_total": total})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, nil)
}

// Delete removes the remote record.
func (s *HTTPStore) Delete(ctx context.Context, experienceID uint64) error {
	url := fmt.Sprintf("%s/experiences/%d/capacity", s.base, experienceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	return s.do(req, nil)
}

func (s *HTTPStore) update(ctx context.Context, experienceID uint64, body capacityUpdateReq, token string) (int64, error) {
	url := fmt.Sprintf("%s/experiences/%d/capacity", s.base, experienceID)
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Idempotency-Key", token)
	}
	var out capacityResp
	if err := s.do(req, &out); err != nil {
		// On ErrInsufficient the decoded body still carries the current
		// remaining value as a hint.
		return out.Remaining, err
	}
	return out.Remaining, nil
}

// do executes the request and maps status codes onto the store's
// sentinel errors.  The response body is drained so the connection can
// be reused.
func (s *HTTPStore) do(req *http.Request, out interface{}) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		// A 409 body still carries the current remaining value so the
		// caller can surface a remaining-capacity hint.
		if out != nil {
			_ = json.NewDecoder(resp.Body).Decode(out)
		}
		return ErrInsufficient
	case resp.StatusCode >= 400:
		return fmt.Errorf("capacity store: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
