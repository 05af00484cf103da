package vk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Attachment formats a saved photo as a wall attachment, e.g. photo-202069060_777.
func Attachment(ref PostReference) string {
	return fmt.Sprintf("photo%d_%d", ref.OwnerID, ref.MediaID)
}

// Message joins title and caption with a blank line.
func Message(title, caption string) string {
	return title + "\n\n" + caption
}

// WallPost publishes a post on behalf of the group with the photo attached
// and returns the new post id.
func (c *Client) WallPost(ctx context.Context, ref *PostReference, title, caption string) (int64, error) {
	params := url.Values{}
	// negative owner ids address groups
	params.Set("owner_id", "-"+c.groupID())
	params.Set("from_group", "1")
	params.Set("attachments", Attachment(*ref))
	params.Set("message", Message(title, caption))

	var posted wallPostResponse
	if err := c.call(ctx, http.MethodGet, "wall.post", params, &posted); err != nil {
		return 0, err
	}
	return posted.PostID, nil
}
