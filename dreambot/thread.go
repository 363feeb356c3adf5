package dreambot

import (
	"context"
	"fmt"

	"github.com/dreambot/dreambot/atproto/client"
	"github.com/dreambot/dreambot/atproto/syntax"
)

// Ancestors requested with each thread fetch.
const DefaultParentHeight = 80

type ThreadPost struct {
	URI       syntax.ATURI
	CID       string
	AuthorDID syntax.DID
	Text      string
}

// ThreadNode is one post in a reply chain. A nil Parent ends the chain, including when the parent was not found or is blocked.
type ThreadNode struct {
	Post   ThreadPost
	Parent *ThreadNode
}

type ThreadFetcher interface {
	GetPostThread(ctx context.Context, uri syntax.ATURI, depth, parentHeight int) (*client.FeedDefs_ThreadViewPost, error)
}

func threadPost(pv *client.FeedDefs_PostView) ThreadPost {
	tp := ThreadPost{
		URI:  syntax.ATURI(pv.Uri),
		CID:  pv.Cid,
		Text: pv.Text(),
	}
	if pv.Author != nil {
		tp.AuthorDID = syntax.DID(pv.Author.Did)
	}
	return tp
}

// NewThreadNode converts a thread view in to a parent-linked chain.
func NewThreadNode(tvp *client.FeedDefs_ThreadViewPost) *ThreadNode {
	if tvp == nil || tvp.Post == nil {
		return nil
	}
	top := &ThreadNode{Post: threadPost(tvp.Post)}
	cur := top
	for p := tvp.Parent; p != nil; {
		view := p.FeedDefs_ThreadViewPost
		if view == nil || view.Post == nil {
			break
		}
		cur.Parent = &ThreadNode{Post: threadPost(view.Post)}
		cur = cur.Parent
		p = view.Parent
	}
	return top
}

// WalkThread builds the prompt list for a trigger post, given the thread fetched for it.
//
// A root-level trigger yields a single "generate:" prompt. For a reply, the trigger's own "generate:" or "update:" prompt comes first, followed by one prompt for every ancestor authored by the same account as the fetched thread node, nearest ancestor first. Posts without a label contribute a placeholder. The result is never empty.
func WalkThread(top *ThreadNode, triggerText string) []string {
	if top == nil || top.Parent == nil {
		return []string{ExtractRootPrompt(triggerText)}
	}

	prompts := []string{ExtractReplyPrompt(triggerText)}
	author := top.Post.AuthorDID

	stack := []*ThreadNode{top.Parent}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}
		if node.Post.AuthorDID == author {
			prompts = append(prompts, ExtractReplyPrompt(node.Post.Text))
		}
		stack = append(stack, node.Parent)
	}
	return prompts
}

// CollectPrompts fetches the thread above a trigger post and walks it.
func CollectPrompts(ctx context.Context, sess ThreadFetcher, trigger *PostRecord, parentHeight int) ([]string, error) {
	if parentHeight <= 0 {
		parentHeight = DefaultParentHeight
	}
	tvp, err := sess.GetPostThread(ctx, trigger.URI, 0, parentHeight)
	if err != nil {
		return nil, fmt.Errorf("fetching thread: %w", err)
	}
	return WalkThread(NewThreadNode(tvp), trigger.Text), nil
}
