package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjannette/quotesync/internal/httputil"
	"github.com/kjannette/quotesync/internal/models"
)

// SupabaseStore talks to a Supabase project through its PostgREST endpoint.
type SupabaseStore struct {
	baseURL    string
	key        string
	httpClient *http.Client
	policy     httputil.Policy
}

func NewSupabaseStore(baseURL, key string, timeout time.Duration) *SupabaseStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(baseURL, "/") + "/rest/v1",
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
		policy:     httputil.SingleAttempt,
	}
}

func (s *SupabaseStore) SelectKeys(ctx context.Context, table, keyField string, keys []string) ([]string, error) {
	if err := checkIdent(table, keyField); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("select", keyField)
	q.Set(keyField, "in.("+inList(keys)+")")

	body, err := s.do(ctx, http.MethodGet, table, q, nil, "")
	if err != nil {
		return nil, fmt.Errorf("select %s from %s: %w", keyField, table, err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("select %s from %s: decode: %w", keyField, table, err)
	}

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if k := models.Record(r).Key(keyField); k != "" {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *SupabaseStore) Insert(ctx context.Context, table string, rows []models.Record) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("insert into %s: encode: %w", table, err)
	}
	if _, err := s.do(ctx, http.MethodPost, table, nil, payload, "return=minimal"); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *SupabaseStore) Update(ctx context.Context, table string, row models.Record, keyField, keyValue string) error {
	if err := checkIdent(table, keyField); err != nil {
		return err
	}

	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("update %s: encode: %w", table, err)
	}

	q := url.Values{}
	q.Set(keyField, "eq."+keyValue)
	if _, err := s.do(ctx, http.MethodPatch, table, q, payload, "return=minimal"); err != nil {
		return fmt.Errorf("update %s where %s=%s: %w", table, keyField, keyValue, err)
	}
	return nil
}

// Ping fetches the PostgREST root, which requires a valid key.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	if _, err := s.do(ctx, http.MethodGet, "", nil, nil, ""); err != nil {
		return fmt.Errorf("supabase ping: %w", err)
	}
	return nil
}

func (s *SupabaseStore) do(ctx context.Context, method, table string, q url.Values, payload []byte, prefer string) ([]byte, error) {
	endpoint := s.baseURL + "/" + table
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	resp, err := httputil.Do(ctx, s.httpClient, s.policy, func() (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("apikey", s.key)
		req.Header.Set("Authorization", "Bearer "+s.key)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if prefer != "" {
			req.Header.Set("Prefer", prefer)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("supabase error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// inList renders keys as a PostgREST in.() list with every value quoted.
func inList(keys []string) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		k = strings.ReplaceAll(k, `\`, `\\`)
		k = strings.ReplaceAll(k, `"`, `\"`)
		quoted[i] = `"` + k + `"`
	}
	return strings.Join(quoted, ",")
}
