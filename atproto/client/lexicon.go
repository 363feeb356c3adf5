package client

import (
	"encoding/json"
	"strings"
)

// Hand-maintained subset of the app.bsky and com.atproto Lexicon schemas, JSON encoding only.

type RepoStrongRef struct {
	LexiconTypeID string `json:"$type,omitempty"`
	Uri           string `json:"uri"`
	Cid           string `json:"cid"`
}

// RECORDTYPE: FeedPost
type FeedPost struct {
	LexiconTypeID string             `json:"$type"`
	CreatedAt     string             `json:"createdAt"`
	Embed         *EmbedImages       `json:"embed,omitempty"`
	Facets        []*RichtextFacet   `json:"facets,omitempty"`
	Langs         []string           `json:"langs,omitempty"`
	Reply         *FeedPost_ReplyRef `json:"reply,omitempty"`
	Text          string             `json:"text"`
}

type FeedPost_ReplyRef struct {
	Parent *RepoStrongRef `json:"parent"`
	Root   *RepoStrongRef `json:"root"`
}

type LexLink struct {
	Link string `json:"$link"`
}

// LexBlob is the JSON form of a blob reference, as returned by uploadBlob and embedded in records.
type LexBlob struct {
	LexiconTypeID string  `json:"$type"`
	Ref           LexLink `json:"ref"`
	MimeType      string  `json:"mimeType"`
	Size          int64   `json:"size"`
}

type EmbedImages struct {
	LexiconTypeID string               `json:"$type"`
	Images        []*EmbedImages_Image `json:"images"`
}

type EmbedImages_Image struct {
	Alt   string   `json:"alt"`
	Image *LexBlob `json:"image"`
}

type RichtextFacet struct {
	Features []*RichtextFacet_Mention `json:"features"`
	Index    *RichtextFacet_ByteSlice `json:"index"`
}

// Byte offsets in to the UTF-8 encoded post text. End is exclusive.
type RichtextFacet_ByteSlice struct {
	ByteEnd   int64 `json:"byteEnd"`
	ByteStart int64 `json:"byteStart"`
}

type RichtextFacet_Mention struct {
	LexiconTypeID string `json:"$type"`
	Did           string `json:"did"`
}

type ActorDefs_ProfileViewBasic struct {
	Did         string  `json:"did"`
	DisplayName *string `json:"displayName,omitempty"`
	Handle      string  `json:"handle"`
}

type ActorDefs_ProfileViewDetailed struct {
	Did         string  `json:"did"`
	Description *string `json:"description,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Handle      string  `json:"handle"`
	PostsCount  *int64  `json:"postsCount,omitempty"`
}

type FeedDefs_PostView struct {
	Author    *ActorDefs_ProfileViewBasic `json:"author"`
	Cid       string                      `json:"cid"`
	IndexedAt string                      `json:"indexedAt"`
	Record    json.RawMessage             `json:"record"`
	Uri       string                      `json:"uri"`
}

// Text returns the "text" field of the embedded post record, or an empty string.
func (pv *FeedDefs_PostView) Text() string {
	if pv == nil || len(pv.Record) == 0 {
		return ""
	}
	var rec struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(pv.Record, &rec); err != nil {
		return ""
	}
	return rec.Text
}

type FeedDefs_NotFoundPost struct {
	LexiconTypeID string `json:"$type"`
	NotFound      bool   `json:"notFound"`
	Uri           string `json:"uri"`
}

type FeedDefs_BlockedPost struct {
	LexiconTypeID string `json:"$type"`
	Blocked       bool   `json:"blocked"`
	Uri           string `json:"uri"`
}

type FeedDefs_ThreadViewPost struct {
	LexiconTypeID string                          `json:"$type,omitempty"`
	Parent        *FeedDefs_ThreadViewPost_Parent `json:"parent,omitempty"`
	Post          *FeedDefs_PostView              `json:"post"`
}

type FeedDefs_ThreadViewPost_Parent struct {
	FeedDefs_ThreadViewPost *FeedDefs_ThreadViewPost
	FeedDefs_NotFoundPost   *FeedDefs_NotFoundPost
	FeedDefs_BlockedPost    *FeedDefs_BlockedPost
}

func (t *FeedDefs_ThreadViewPost_Parent) UnmarshalJSON(b []byte) error {
	typ, err := typeExtract(b)
	if err != nil {
		return err
	}

	switch typ {
	case "app.bsky.feed.defs#threadViewPost":
		t.FeedDefs_ThreadViewPost = new(FeedDefs_ThreadViewPost)
		return json.Unmarshal(b, t.FeedDefs_ThreadViewPost)
	case "app.bsky.feed.defs#notFoundPost":
		t.FeedDefs_NotFoundPost = new(FeedDefs_NotFoundPost)
		return json.Unmarshal(b, t.FeedDefs_NotFoundPost)
	case "app.bsky.feed.defs#blockedPost":
		t.FeedDefs_BlockedPost = new(FeedDefs_BlockedPost)
		return json.Unmarshal(b, t.FeedDefs_BlockedPost)
	default:
		return nil
	}
}

// FeedGetPostThread_Output is the output of a app.bsky.feed.getPostThread call.
type FeedGetPostThread_Output struct {
	// Same union as a thread parent.
	Thread *FeedDefs_ThreadViewPost_Parent `json:"thread"`
}

type FeedDefs_FeedViewPost struct {
	Post *FeedDefs_PostView `json:"post"`
}

// FeedGetAuthorFeed_Output is the output of a app.bsky.feed.getAuthorFeed call.
type FeedGetAuthorFeed_Output struct {
	Cursor *string                  `json:"cursor,omitempty"`
	Feed   []*FeedDefs_FeedViewPost `json:"feed"`
}

// RepoCreateRecord_Input is the input argument to a com.atproto.repo.createRecord call.
type RepoCreateRecord_Input struct {
	Collection string  `json:"collection"`
	Record     any     `json:"record"`
	Repo       string  `json:"repo"`
	Rkey       *string `json:"rkey,omitempty"`
	Validate   *bool   `json:"validate,omitempty"`
}

// RepoCreateRecord_Output is the output of a com.atproto.repo.createRecord call.
type RepoCreateRecord_Output struct {
	Cid string `json:"cid"`
	Uri string `json:"uri"`
}

// RepoDeleteRecord_Input is the input argument to a com.atproto.repo.deleteRecord call.
type RepoDeleteRecord_Input struct {
	Collection string `json:"collection"`
	Repo       string `json:"repo"`
	Rkey       string `json:"rkey"`
}

// RepoUploadBlob_Output is the output of a com.atproto.repo.uploadBlob call.
type RepoUploadBlob_Output struct {
	Blob *LexBlob `json:"blob"`
}

func typeExtract(b []byte) (string, error) {
	var tcheck struct {
		Type string `json:"$type"`
	}
	if err := json.Unmarshal(b, &tcheck); err != nil {
		return "", err
	}
	return tcheck.Type, nil
}

// MentionFacet covers the first occurrence of "@"+handle in text with a mention of did.
func MentionFacet(text, handle, did string) *RichtextFacet {
	needle := "@" + handle
	start := strings.Index(text, needle)
	if start < 0 {
		return nil
	}
	return &RichtextFacet{
		Index: &RichtextFacet_ByteSlice{
			ByteStart: int64(start),
			ByteEnd:   int64(start + len(needle)),
		},
		Features: []*RichtextFacet_Mention{{
			LexiconTypeID: "app.bsky.richtext.facet#mention",
			Did:           did,
		}},
	}
}
