package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
	"github.com/basel-ax/news2toon/internal/metrics"
	"github.com/basel-ax/news2toon/internal/retry"
)

const (
	defaultRelayRetries = 3
	uploadAttempts      = 3
	fetchTimeout        = 30 * time.Second
	maxImageSize        = 50 * 1024 * 1024
	storageFolder       = "cartoons"
)

// StorageRelay copies provider hosted images into durable storage
type StorageRelay struct {
	store        domain.ObjectStore
	httpClient   *http.Client
	fetchTimeout time.Duration
	maxSize      int64
	wait         retry.WaitFunc
	now          func() time.Time
	suffix       func() string
	metrics      *metrics.Collector
	log          *zap.Logger
}

// NewStorageRelay creates a new relay writing to store
func NewStorageRelay(store domain.ObjectStore, httpClient *http.Client, collector *metrics.Collector, log *zap.Logger) *StorageRelay {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StorageRelay{
		store:        store,
		httpClient:   httpClient,
		fetchTimeout: fetchTimeout,
		maxSize:      maxImageSize,
		wait:         retry.Sleep,
		now:          time.Now,
		suffix:       randomSuffix,
		metrics:      collector,
		log:          log.With(zap.String("component", "relay")),
	}
}

// WithWait replaces the delay function used between attempts
func (r *StorageRelay) WithWait(wait retry.WaitFunc) *StorageRelay {
	r.wait = wait
	return r
}

// Relay stores the image behind temporaryURL and returns its public URL.
// retries <= 0 uses the default of 3.
func (r *StorageRelay) Relay(ctx context.Context, temporaryURL string, retries int) (string, error) {
	img, err := r.RelayImage(ctx, temporaryURL, retries)
	if err != nil {
		return "", err
	}
	return img.PublicURL, nil
}

// RelayImage is Relay returning the full storage record
func (r *StorageRelay) RelayImage(ctx context.Context, temporaryURL string, retries int) (domain.StoredImage, error) {
	if strings.TrimSpace(temporaryURL) == "" {
		return domain.StoredImage{}, domain.ValidationError("Image URL is required")
	}
	if retries <= 0 {
		retries = defaultRelayRetries
	}

	start := time.Now()
	policy := retry.Policy{
		Name:        "storage upload",
		MaxAttempts: retries,
		Backoff:     retry.Linear(time.Second),
		Wait:        r.wait,
	}
	img, err := retry.DoWithResult(ctx, policy, r.log, func(ctx context.Context, attempt int) (domain.StoredImage, error) {
		r.log.Debug("storage upload attempt", zap.Int("attempt", attempt), zap.Int("retries", retries))
		return r.relayOnce(ctx, temporaryURL)
	})
	if err != nil {
		r.metrics.RelayRun("failure", time.Since(start).Seconds())
		var ex *retry.ExhaustedError
		if errors.As(err, &ex) {
			return domain.StoredImage{}, &domain.StorageError{Attempts: ex.Attempts, Err: ex.Err}
		}
		return domain.StoredImage{}, &domain.StorageError{Attempts: retries, Err: err}
	}

	r.metrics.RelayRun("success", time.Since(start).Seconds())
	r.log.Info("image uploaded", zap.String("path", img.FilePath))
	return img, nil
}

func (r *StorageRelay) relayOnce(ctx context.Context, sourceURL string) (domain.StoredImage, error) {
	data, err := r.fetch(ctx, sourceURL)
	if err != nil {
		return domain.StoredImage{}, err
	}

	filePath := r.filePath()
	uploadPolicy := retry.Policy{
		Name:        "object upload",
		MaxAttempts: uploadAttempts,
		Backoff:     retry.Linear(time.Second),
		Wait:        r.wait,
	}
	err = retry.Do(ctx, uploadPolicy, r.log, func(ctx context.Context, _ int) error {
		return r.store.Upload(ctx, filePath, data, domain.UploadOptions{
			ContentType:  "image/png",
			CacheControl: "max-age=3600",
			Upsert:       false,
		})
	})
	if err != nil {
		return domain.StoredImage{}, fmt.Errorf("failed to upload image: %w", err)
	}

	return domain.StoredImage{
		SourceURL: sourceURL,
		FilePath:  filePath,
		PublicURL: r.store.PublicURL(filePath),
	}, nil
}

func (r *StorageRelay) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/*, */*")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch image: %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("invalid content type: %s", contentType)
	}

	if resp.ContentLength > r.maxSize {
		return nil, fmt.Errorf("image exceeds %d bytes: %d", r.maxSize, resp.ContentLength)
	}

	// One byte past the limit tells a full read from a truncated one.
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("image exceeds %d bytes", r.maxSize)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image received")
	}
	return data, nil
}

func (r *StorageRelay) filePath() string {
	timestamp := strings.ReplaceAll(r.now().UTC().Format("20060102150405.000"), ".", "")
	return fmt.Sprintf("%s/cartoon-%s-%s.png", storageFolder, timestamp, r.suffix())
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
