package dreambot

import (
	"errors"
	"fmt"

	"github.com/dreambot/dreambot/atproto/syntax"
	"github.com/dreambot/dreambot/firehose"

	"github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"
)

const PostCollection = syntax.NSID("app.bsky.feed.post")

// ErrNoRecord means the op carries no usable record: not a create, no CID, or the block is missing from the commit.
var ErrNoRecord = errors.New("no record for repo op")

// PostRecord is a record created in a commit, with its identifying fields resolved.
type PostRecord struct {
	URI        syntax.ATURI
	CID        cid.Cid
	Author     syntax.DID
	Collection syntax.NSID
	RecordKey  syntax.RecordKey

	// "text" field, if the record has one
	Text string

	// Decoded record, plus "uri", "cid" and "author" keys unless the record already has them.
	Fields map[string]any
}

// ExtractRecord resolves a create op against the commit's blocks. Updates and deletes return ErrNoRecord.
func ExtractRecord(op *firehose.RepoOp, commit *firehose.Commit) (*PostRecord, error) {
	if op == nil || op.Action != "create" {
		return nil, ErrNoRecord
	}
	if op.CID == nil || !op.CID.Defined() {
		return nil, fmt.Errorf("%w: create op without CID: %s", ErrNoRecord, op.Path)
	}
	if commit.Blocks == nil {
		return nil, fmt.Errorf("%w: commit has no blocks", ErrNoRecord)
	}
	raw, ok := commit.Blocks.RawData(*op.CID)
	if !ok {
		return nil, fmt.Errorf("%w: block not in commit: %s", ErrNoRecord, op.CID)
	}

	did, err := syntax.ParseDID(commit.Repo)
	if err != nil {
		return nil, fmt.Errorf("invalid repo DID in commit: %w", err)
	}
	collection, rkey, err := syntax.ParseRepoPath(op.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid repo op path: %w", err)
	}

	fields := make(map[string]any)
	if err := cbornode.DecodeInto(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding record block (%s): %w", op.CID, err)
	}

	uri := syntax.RecordURI(did, collection, rkey)
	for k, v := range map[string]string{"uri": uri.String(), "cid": op.CID.String(), "author": did.String()} {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}

	rec := &PostRecord{
		URI:        uri,
		CID:        *op.CID,
		Author:     did,
		Collection: collection,
		RecordKey:  rkey,
		Fields:     fields,
	}
	if text, ok := fields["text"].(string); ok {
		rec.Text = text
	}
	return rec, nil
}
