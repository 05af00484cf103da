package vk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/xkcd-vk/comicposter/internal/apperr"
)

// GetWallUploadServer returns the temporary URL that accepts a photo for the
// group wall.
func (c *Client) GetWallUploadServer(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("group_id", c.groupID())

	var server uploadServerResponse
	if err := c.call(ctx, http.MethodGet, "photos.getWallUploadServer", params, &server); err != nil {
		return "", err
	}
	if server.UploadURL == "" {
		return "", apperr.Protocolf("vk photos.getWallUploadServer", "upload_url is missing")
	}
	return server.UploadURL, nil
}

// UploadPhoto posts the file at filePath to uploadURL as the multipart field
// "photo" and returns the handle needed to save it.
func (c *Client) UploadPhoto(ctx context.Context, uploadURL, filePath string) (*UploadHandle, error) {
	const op = "vk photo upload"

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("photo", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy image into request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, status, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	// The upload server answers with a flat object rather than the
	// response/error envelope of the method API.
	var uploaded uploadResponse
	decodeErr := json.Unmarshal(body, &uploaded)
	if decodeErr == nil {
		if apiErr, ok := parseAPIError(uploaded.Error); ok {
			return nil, &apperr.ProtocolError{Op: op, StatusCode: status, Code: apiErr.Code, Message: apiErr.Message}
		}
	}
	if status < 200 || status > 299 {
		return nil, apperr.Status(op, status, string(body))
	}
	if decodeErr != nil {
		return nil, apperr.Protocolf(op, "failed to decode response: %v", decodeErr)
	}

	return &UploadHandle{
		Server: string(uploaded.Server),
		Photo:  uploaded.Photo,
		Hash:   uploaded.Hash,
	}, nil
}

// SaveWallPhoto registers an uploaded photo with the group and returns the
// owner and media ids of the first saved photo.
func (c *Client) SaveWallPhoto(ctx context.Context, handle *UploadHandle) (*PostReference, error) {
	params := url.Values{}
	params.Set("server", handle.Server)
	params.Set("photo", handle.Photo)
	params.Set("hash", handle.Hash)
	params.Set("group_id", c.groupID())

	var saved []PostReference
	if err := c.call(ctx, http.MethodPost, "photos.saveWallPhoto", params, &saved); err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, apperr.Protocolf("vk photos.saveWallPhoto", "no photos were saved")
	}
	return &saved[0], nil
}
