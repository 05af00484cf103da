package poster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkcd-vk/comicposter/internal/apperr"
	"github.com/xkcd-vk/comicposter/internal/vk"
	"github.com/xkcd-vk/comicposter/internal/xkcd"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errRefused = errors.New("dial tcp 127.0.0.1:1: connect: connection refused")

type fakeComics struct {
	errs  []error
	calls int
}

func (f *fakeComics) Random(ctx context.Context) (*xkcd.Comic, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &xkcd.Comic{ID: 500, ImageURL: "https://imgs.xkcd.com/comics/election.png", Title: "Election", Caption: "Vote"}, nil
}

// fakeFetcher writes a file and records whether a previous one leaked
type fakeFetcher struct {
	calls     int
	preexists []bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, destination string) error {
	f.calls++
	_, err := os.Stat(destination)
	f.preexists = append(f.preexists, err == nil)
	return os.WriteFile(destination, []byte("image"), 0644)
}

type fakeWall struct {
	uploadErrs  []error
	saveErr     error
	postErr     error
	uploads     int
	uploadPaths []string
	posted      []string
}

func (f *fakeWall) GetWallUploadServer(ctx context.Context) (string, error) {
	return "https://pu.vk.com/upload", nil
}

func (f *fakeWall) UploadPhoto(ctx context.Context, uploadURL, filePath string) (*vk.UploadHandle, error) {
	f.uploads++
	f.uploadPaths = append(f.uploadPaths, filePath)
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &vk.UploadHandle{Server: "s1", Photo: "[]", Hash: "abc"}, nil
}

func (f *fakeWall) SaveWallPhoto(ctx context.Context, handle *vk.UploadHandle) (*vk.PostReference, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &vk.PostReference{OwnerID: -202069060, MediaID: 777}, nil
}

func (f *fakeWall) WallPost(ctx context.Context, ref *vk.PostReference, title, caption string) (int64, error) {
	if f.postErr != nil {
		return 0, f.postErr
	}
	f.posted = append(f.posted, vk.Attachment(*ref)+"|"+vk.Message(title, caption))
	return 99, nil
}

func newTestPoster(t *testing.T, comics ComicSource, wall WallPublisher, fetcher *fakeFetcher) (*Poster, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "random_comic.png")
	p := New(comics, fetcher, wall, Options{
		ImagePath:    path,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Logger:       testLogger(),
	})
	return p, path
}

func TestRunSuccess(t *testing.T) {
	comics := &fakeComics{}
	fetcher := &fakeFetcher{}
	wall := &fakeWall{}
	p, path := newTestPoster(t, comics, wall, fetcher)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int64(99), res.PostID)
	assert.Equal(t, "Election", res.Comic.Title)
	assert.Equal(t, vk.PostReference{OwnerID: -202069060, MediaID: 777}, res.Post)
	assert.Equal(t, []string{"photo-202069060_777|Election\n\nVote"}, wall.posted)
	assert.Equal(t, []string{path}, wall.uploadPaths)
	assert.NoFileExists(t, path)
}

func TestRunProtocolErrorIsNotRetried(t *testing.T) {
	tests := []struct {
		name  string
		wall  *fakeWall
		comic *fakeComics
		state State
	}{
		{
			name:  "embedded api error while saving",
			wall:  &fakeWall{saveErr: &apperr.ProtocolError{Op: "vk photos.saveWallPhoto", StatusCode: 200, Code: 100, Message: "photos_list is invalid"}},
			comic: &fakeComics{},
			state: StateSaving,
		},
		{
			name:  "bad status while fetching metadata",
			wall:  &fakeWall{},
			comic: &fakeComics{errs: []error{apperr.Status("xkcd latest", 503, "unavailable")}},
			state: StateFetchingMetadata,
		},
		{
			name:  "api error while publishing",
			wall:  &fakeWall{postErr: &apperr.ProtocolError{Op: "vk wall.post", Code: 214, Message: "Access to adding post denied"}},
			comic: &fakeComics{},
			state: StatePublishing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{}
			p, path := newTestPoster(t, tt.comic, tt.wall, fetcher)

			_, err := p.Run(context.Background())
			require.Error(t, err)
			assert.True(t, apperr.IsProtocol(err))
			assert.NotErrorIs(t, err, ErrRetriesExhausted)

			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, tt.state, stepErr.State)

			assert.Equal(t, 1, tt.comic.calls)
			assert.NoFileExists(t, path)
		})
	}
}

func TestRunProtocolErrorKeepsAPIMessage(t *testing.T) {
	wall := &fakeWall{saveErr: &apperr.ProtocolError{Op: "vk photos.saveWallPhoto", StatusCode: 200, Code: 5, Message: "User authorization failed"}}
	p, _ := newTestPoster(t, &fakeComics{}, wall, &fakeFetcher{})

	_, err := p.Run(context.Background())
	msg, ok := apperr.APIMessage(err)
	require.True(t, ok)
	assert.Equal(t, "User authorization failed", msg)
}

func TestRunRestartsFromFirstStateOnTransportError(t *testing.T) {
	comics := &fakeComics{}
	fetcher := &fakeFetcher{}
	wall := &fakeWall{uploadErrs: []error{apperr.Transport("vk photo upload", errRefused)}}
	p, path := newTestPoster(t, comics, wall, fetcher)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, comics.calls, "metadata must be fetched again")
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, []bool{false, false}, fetcher.preexists, "no image may survive a failed attempt")
	assert.Len(t, wall.posted, 1)
	assert.NoFileExists(t, path)
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	comics := &fakeComics{errs: []error{
		apperr.Transport("xkcd latest", errRefused),
		apperr.Transport("xkcd latest", errRefused),
		apperr.Transport("xkcd latest", errRefused),
		nil,
	}}
	p, path := newTestPoster(t, comics, &fakeWall{}, &fakeFetcher{})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.True(t, apperr.IsTransport(err))
	assert.Equal(t, 3, comics.calls)
	assert.NoFileExists(t, path)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	comics := &fakeComics{errs: []error{apperr.Transport("xkcd latest", errRefused)}}
	fetcher := &fakeFetcher{}
	path := filepath.Join(t.TempDir(), "random_comic.png")
	p := New(comics, fetcher, &fakeWall{}, Options{
		ImagePath:    path,
		MaxAttempts:  10,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Logger:       testLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Run(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, comics.calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "fetching_metadata", StateFetchingMetadata.String())
	assert.Equal(t, "publishing", StatePublishing.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
