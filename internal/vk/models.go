package vk

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Credentials identify the group and the token every method call runs under
type Credentials struct {
	GroupID     int64
	AccessToken string
}

// UploadHandle is the server/photo/hash triple returned by the upload server
type UploadHandle struct {
	Server string `json:"server"`
	Photo  string `json:"photo"`
	Hash   string `json:"hash"`
}

// PostReference identifies a saved wall photo
type PostReference struct {
	OwnerID int64 `json:"owner_id"`
	MediaID int64 `json:"id"`
}

// APIError is the error object VK embeds in response bodies
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    json.RawMessage `json:"error"`
}

type uploadServerResponse struct {
	UploadURL string `json:"upload_url"`
	AlbumID   int64  `json:"album_id"`
	UserID    int64  `json:"user_id"`
}

type uploadResponse struct {
	Server flexString      `json:"server"`
	Photo  string          `json:"photo"`
	Hash   string          `json:"hash"`
	Error  json.RawMessage `json:"error"`
}

type wallPostResponse struct {
	PostID int64 `json:"post_id"`
}

// flexString accepts a JSON string or number. The upload server reports
// "server" as a number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("server must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// parseAPIError decodes an embedded error. Method endpoints send an object
// with error_msg; upload servers sometimes send a bare string.
func parseAPIError(raw json.RawMessage) (*APIError, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}

	var apiErr APIError
	if err := json.Unmarshal(raw, &apiErr); err == nil {
		return &apiErr, true
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return &APIError{Message: msg}, true
	}

	return &APIError{Message: string(raw)}, true
}
