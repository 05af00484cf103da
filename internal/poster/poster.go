package poster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xkcd-vk/comicposter/internal/apperr"
	"github.com/xkcd-vk/comicposter/internal/images"
	"github.com/xkcd-vk/comicposter/internal/vk"
	"github.com/xkcd-vk/comicposter/internal/xkcd"
)

// ErrRetriesExhausted is returned when every attempt failed on connectivity
var ErrRetriesExhausted = errors.New("retries exhausted")

const (
	DefaultImagePath    = "random_comic.png"
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = 3 * time.Second
	DefaultMaxDelay     = time.Minute
)

// ComicSource picks the comic to publish
type ComicSource interface {
	Random(ctx context.Context) (*xkcd.Comic, error)
}

// ImageFetcher downloads an image to a local path
type ImageFetcher interface {
	Fetch(ctx context.Context, url, destination string) error
}

// WallPublisher is the upload and publish protocol of the social API
type WallPublisher interface {
	GetWallUploadServer(ctx context.Context) (string, error)
	UploadPhoto(ctx context.Context, uploadURL, filePath string) (*vk.UploadHandle, error)
	SaveWallPhoto(ctx context.Context, handle *vk.UploadHandle) (*vk.PostReference, error)
	WallPost(ctx context.Context, ref *vk.PostReference, title, caption string) (int64, error)
}

// Options tune a Poster. Zero values take the package defaults.
type Options struct {
	ImagePath    string
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Logger       *slog.Logger
}

// Result describes a published comic
type Result struct {
	Comic    xkcd.Comic
	Post     vk.PostReference
	PostID   int64
	Attempts int
}

// Poster runs the fetch, download, upload and publish sequence
type Poster struct {
	comics ComicSource
	images ImageFetcher
	wall   WallPublisher
	opts   Options
	logger *slog.Logger
}

// New creates a Poster
func New(comics ComicSource, fetcher ImageFetcher, wall WallPublisher, opts Options) *Poster {
	if opts.ImagePath == "" {
		opts.ImagePath = DefaultImagePath
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poster{
		comics: comics,
		images: fetcher,
		wall:   wall,
		opts:   opts,
		logger: logger,
	}
}

// Run publishes one random comic. A connectivity failure in any state restarts
// the whole sequence after an exponential backoff, up to MaxAttempts runs; any
// other failure ends the run at once.
func (p *Poster) Run(ctx context.Context) (*Result, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = p.opts.InitialDelay
	expBackoff.MaxInterval = p.opts.MaxDelay
	expBackoff.Multiplier = 2

	attempts := 0
	operation := func() (*Result, error) {
		attempts++
		res, err := p.attempt(ctx)
		if err == nil {
			res.Attempts = attempts
			return res, nil
		}
		if apperr.IsTransport(err) && ctx.Err() == nil {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	notify := func(err error, next time.Duration) {
		p.logger.Warn("Connection failed, restarting run",
			"attempt", attempts,
			"max_attempts", p.opts.MaxAttempts,
			"retry_in", next,
			"error", err)
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(p.opts.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		// the final attempt comes back still marked permanent
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		if apperr.IsTransport(err) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
		}
		return nil, err
	}

	return res, nil
}

// attempt makes one pass from StateFetchingMetadata to StateDone. The
// downloaded image is removed before it returns, whatever the outcome.
func (p *Poster) attempt(ctx context.Context) (*Result, error) {
	scratch := images.NewScratch(p.opts.ImagePath)
	defer func() { _ = scratch.Release() }()

	var state State
	enter := func(next State) {
		state = next
		p.logger.Debug("Entering state", "state", state)
	}
	fail := func(err error) error {
		p.logger.Debug("Entering state", "state", StateFailed, "failed_in", state, "error", err)
		return &StepError{State: state, Err: err}
	}

	enter(StateFetchingMetadata)
	comic, err := p.comics.Random(ctx)
	if err != nil {
		return nil, fail(err)
	}
	p.logger.Info("Selected comic", "id", comic.ID, "title", comic.Title)

	enter(StateDownloading)
	if err := p.images.Fetch(ctx, comic.ImageURL, scratch.Path); err != nil {
		return nil, fail(err)
	}

	enter(StateAcquiringEndpoint)
	uploadURL, err := p.wall.GetWallUploadServer(ctx)
	if err != nil {
		return nil, fail(err)
	}

	enter(StateUploading)
	handle, err := p.wall.UploadPhoto(ctx, uploadURL, scratch.Path)
	if err != nil {
		return nil, fail(err)
	}

	enter(StateSaving)
	ref, err := p.wall.SaveWallPhoto(ctx, handle)
	if err != nil {
		return nil, fail(err)
	}

	enter(StatePublishing)
	postID, err := p.wall.WallPost(ctx, ref, comic.Title, comic.Caption)
	if err != nil {
		return nil, fail(err)
	}

	enter(StateDone)
	return &Result{
		Comic:  *comic,
		Post:   *ref,
		PostID: postID,
	}, nil
}
