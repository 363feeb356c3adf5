package dreambot

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dreambot/dreambot/atproto/client"
	"github.com/dreambot/dreambot/atproto/syntax"
)

const replyTemplate = "Hey, @%s. Here's an image generated from your post."

// Reply is a fully composed reply post, ready to be uploaded and created.
type Reply struct {
	Text     string
	Facets   []*client.RichtextFacet
	Root     client.RepoStrongRef
	Parent   client.RepoStrongRef
	Image    []byte
	ImageAlt string
}

type Poster interface {
	UploadBlob(ctx context.Context, data []byte, mimeType string) (*client.LexBlob, error)
	CreateRecord(ctx context.Context, collection syntax.NSID, record any) (*client.RepoCreateRecord_Output, error)
}

// ComposeReply builds the reply to a trigger post. Root and parent both point at the trigger, and the alt text is the last prompt.
func ComposeReply(handle string, author syntax.DID, trigger client.RepoStrongRef, prompts []string, image []byte) *Reply {
	text := fmt.Sprintf(replyTemplate, handle)
	r := &Reply{
		Text:   text,
		Root:   trigger,
		Parent: trigger,
		Image:  image,
	}
	if f := client.MentionFacet(text, handle, author.String()); f != nil {
		r.Facets = []*client.RichtextFacet{f}
	}
	if len(prompts) > 0 {
		r.ImageAlt = strings.TrimSpace(prompts[len(prompts)-1])
	}
	return r
}

// PostReply uploads the image and creates the reply post in the session account's repo.
func PostReply(ctx context.Context, sess Poster, r *Reply) (*client.RepoStrongRef, error) {
	post := &client.FeedPost{
		LexiconTypeID: string(PostCollection),
		Text:          r.Text,
		CreatedAt:     syntax.DatetimeNow().String(),
		Facets:        r.Facets,
		Langs:         []string{"en"},
		Reply: &client.FeedPost_ReplyRef{
			Root:   &client.RepoStrongRef{Uri: r.Root.Uri, Cid: r.Root.Cid},
			Parent: &client.RepoStrongRef{Uri: r.Parent.Uri, Cid: r.Parent.Cid},
		},
	}

	if len(r.Image) > 0 {
		blob, err := sess.UploadBlob(ctx, r.Image, http.DetectContentType(r.Image))
		if err != nil {
			return nil, fmt.Errorf("uploading image: %w", err)
		}
		post.Embed = &client.EmbedImages{
			LexiconTypeID: "app.bsky.embed.images",
			Images: []*client.EmbedImages_Image{{
				Alt:   r.ImageAlt,
				Image: blob,
			}},
		}
	}

	out, err := sess.CreateRecord(ctx, PostCollection, post)
	if err != nil {
		return nil, fmt.Errorf("creating reply post: %w", err)
	}
	return &client.RepoStrongRef{Uri: out.Uri, Cid: out.Cid}, nil
}
