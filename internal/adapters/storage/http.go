package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

// HTTPStorage implements ObjectStorage for files served over HTTP(S). The
// available files are listed one per line in an index file.
type HTTPStorage struct {
	client        *http.Client
	baseURL       string
	indexFile     string
	username      string
	password      string
	maxRetries    uint64
	retryInterval time.Duration
	logger        *slog.Logger
}

// HTTPConfig holds HTTP storage configuration.
type HTTPConfig struct {
	BaseURL       string
	IndexFile     string // default: index.txt
	Timeout       time.Duration
	Username      string
	Password      string
	MaxRetries    int           // retries after the first attempt
	RetryInterval time.Duration // first retry delay, default 500ms
}

// NewHTTPStorage creates a new HTTP storage adapter.
func NewHTTPStorage(cfg HTTPConfig, logger *slog.Logger) *HTTPStorage {
	if cfg.IndexFile == "" {
		cfg.IndexFile = "index.txt"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}

	return &HTTPStorage{
		client:        &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		indexFile:     cfg.IndexFile,
		username:      cfg.Username,
		password:      cfg.Password,
		maxRetries:    uint64(cfg.MaxRetries),
		retryInterval: cfg.RetryInterval,
		logger:        logger,
	}
}

// statusError is a response status that retrying will not change.
type statusError struct {
	Key    string
	Status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Status, e.Key)
}

// get performs a GET or HEAD request for key. Transport errors, 5xx and
// 429 responses are retried with exponential backoff; other non-200
// statuses return a statusError immediately. The caller closes the body.
func (s *HTTPStorage) get(ctx context.Context, method, key string) (*http.Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	b.MaxElapsedTime = 0

	var (
		resp  *http.Response
		final error
	)
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/"+key, nil)
		if err != nil {
			final = err
			return nil
		}
		if s.username != "" && s.password != "" {
			req.SetBasicAuth(s.username, s.password)
		}

		r, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				final = ctx.Err()
				return nil
			}
			return err
		}

		switch {
		case r.StatusCode == http.StatusOK:
			resp = r
			return nil
		case r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests:
			_ = r.Body.Close()
			return &statusError{Key: key, Status: r.StatusCode}
		default:
			_ = r.Body.Close()
			final = &statusError{Key: key, Status: r.StatusCode}
			return nil
		}
	}
	notify := func(err error, d time.Duration) {
		if s.logger != nil {
			s.logger.Warn("storage request failed, retrying", "key", key, "error", err, "retry_in", d)
		}
	}

	if err := backoff.RetryNotify(op, backoff.WithMaxRetries(b, s.maxRetries), notify); err != nil {
		return nil, err
	}
	if final != nil {
		return nil, final
	}
	return resp, nil
}

// List returns all layer files listed in the index file.
func (s *HTTPStorage) List(ctx context.Context) ([]output.StorageObject, error) {
	resp, err := s.get(ctx, http.MethodGet, s.indexFile)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: s.indexFile, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var objects []output.StorageObject
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !domain.IsLayerFile(line) {
			continue
		}
		objects = append(objects, output.StorageObject{Key: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: s.indexFile, Err: err}
	}

	return objects, nil
}

// Download fetches a file into dest.
func (s *HTTPStorage) Download(ctx context.Context, key string, dest string) error {
	resp, err := s.get(ctx, http.MethodGet, key)
	if err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := saveTo(dest, resp.Body); err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	return nil
}

// GetReader returns the body of the given file.
func (s *HTTPStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.get(ctx, http.MethodGet, key)
	if err != nil {
		return nil, &domain.StorageError{Operation: "read", Key: key, Err: err}
	}
	return resp.Body, nil
}

// Exists checks if a file exists via HTTP HEAD request.
func (s *HTTPStorage) Exists(ctx context.Context, key string) (bool, error) {
	resp, err := s.get(ctx, http.MethodHead, key)
	if err != nil {
		var status *statusError
		if errors.As(err, &status) && status.Status == http.StatusNotFound {
			return false, nil
		}
		return false, &domain.StorageError{Operation: "exists", Key: key, Err: err}
	}
	_ = resp.Body.Close()
	return true, nil
}
