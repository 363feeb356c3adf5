// Package testutil builds synthetic firehose frames for tests.
package testutil

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"
	"github.com/ipld/go-car"
	carutil "github.com/ipld/go-car/util"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

// Block is one DAG-CBOR encoded object and its CID.
type Block struct {
	CID  cid.Cid
	Data []byte
}

// Op describes one repo operation in a synthetic commit. If Record is set, it is encoded and included in the commit's CAR slice.
type Op struct {
	Action string
	Path   string
	Record map[string]any

	// When Record is nil, an optional CID to reference without including the block.
	CID *cid.Cid
}

type CommitFrame struct {
	Repo   string
	Seq    int64
	Rev    string
	TooBig bool
	Ops    []Op

	// Overrides the generated CAR slice when non-nil.
	Blocks []byte
}

func CBORBlock(t testing.TB, obj map[string]any) Block {
	t.Helper()
	raw, err := cbornode.DumpObject(obj)
	require.NoError(t, err)
	c, err := cid.Prefix{Version: 1, Codec: cid.DagCBOR, MhType: multihash.SHA2_256, MhLength: -1}.Sum(raw)
	require.NoError(t, err)
	return Block{CID: c, Data: raw}
}

// PostRecord returns a minimal app.bsky.feed.post record.
func PostRecord(text string) map[string]any {
	return map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": "2024-02-25T19:28:33.000Z",
	}
}

// CARSlice writes a CARv1 archive rooted at the first block.
func CARSlice(t testing.TB, blks ...Block) []byte {
	t.Helper()
	require.NotEmpty(t, blks)
	buf := new(bytes.Buffer)
	require.NoError(t, car.WriteHeader(&car.CarHeader{Roots: []cid.Cid{blks[0].CID}, Version: 1}, buf))
	for _, b := range blks {
		require.NoError(t, carutil.LdWrite(buf, b.CID.Bytes(), b.Data))
	}
	return buf.Bytes()
}

// Frame concatenates an encoded header and body, the way the relay sends them.
func Frame(t testing.TB, header, body map[string]any) []byte {
	t.Helper()
	h, err := cbornode.DumpObject(header)
	require.NoError(t, err)
	b, err := cbornode.DumpObject(body)
	require.NoError(t, err)
	return append(h, b...)
}

// Commit encodes a "#commit" frame. It returns the frame and the CIDs of the ops, in order.
func Commit(t testing.TB, cf CommitFrame) ([]byte, []*cid.Cid) {
	t.Helper()

	commitBlk := CBORBlock(t, map[string]any{"did": cf.Repo, "version": 3, "rev": cf.Rev})
	blks := []Block{commitBlk}
	ops := make([]any, 0, len(cf.Ops))
	cids := make([]*cid.Cid, 0, len(cf.Ops))
	for _, op := range cf.Ops {
		var c *cid.Cid
		if op.Record != nil {
			blk := CBORBlock(t, op.Record)
			blks = append(blks, blk)
			c = &blk.CID
		} else if op.CID != nil {
			c = op.CID
		}
		cids = append(cids, c)
		m := map[string]any{
			"action": op.Action,
			"path":   op.Path,
		}
		if c != nil {
			m["cid"] = *c
		} else {
			m["cid"] = nil
		}
		ops = append(ops, m)
	}

	blocks := cf.Blocks
	if blocks == nil && !cf.TooBig {
		blocks = CARSlice(t, blks...)
	}
	if blocks == nil {
		blocks = []byte{}
	}

	body := map[string]any{
		"repo":   cf.Repo,
		"seq":    cf.Seq,
		"rev":    cf.Rev,
		"time":   "2024-02-25T19:28:33.000Z",
		"tooBig": cf.TooBig,
		"rebase": false,
		"commit": commitBlk.CID,
		"since":  nil,
		"blobs":  []any{},
		"ops":    ops,
		"blocks": blocks,
	}
	return Frame(t, map[string]any{"op": 1, "t": "#commit"}, body), cids
}

// InfoFrame encodes a non-commit "#info" message.
func InfoFrame(t testing.TB) []byte {
	return Frame(t, map[string]any{"op": 1, "t": "#info"}, map[string]any{"name": "OutdatedCursor"})
}

// ErrorFrame encodes a relay error frame (op -1).
func ErrorFrame(t testing.TB, name, message string) []byte {
	return Frame(t, map[string]any{"op": -1}, map[string]any{"error": name, "message": message})
}
