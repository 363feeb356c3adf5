package firehose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dreambot/dreambot/atproto/repo"

	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
)

const (
	EvtKindErrorFrame = -1
	EvtKindMessage    = 1
)

// Upper bound on the 'blocks' CAR slice of a single commit.
const MaxBlocksSize = 16 * 1024 * 1024

// Returned (wrapped) for frames or block archives which could not be parsed.
var ErrDecode = errors.New("firehose frame decode failed")

// EventHeader is the first of the two DAG-CBOR objects in every stream frame.
type EventHeader struct {
	Op      int64  `cborgen:"op"`
	MsgType string `cborgen:"t"`
}

// ErrorFrame is sent by the relay before it closes a subscription (eg, "FutureCursor", "ConsumerTooSlow").
type ErrorFrame struct {
	Name    string `cborgen:"error"`
	Message string `cborgen:"message"`
}

func (ef *ErrorFrame) Error() string {
	if ef.Message == "" {
		return fmt.Sprintf("stream error frame: %s", ef.Name)
	}
	return fmt.Sprintf("stream error frame: %s: %s", ef.Name, ef.Message)
}

// RepoOp is a single create/update/delete within a commit.
type RepoOp struct {
	Action string   `cborgen:"action"`
	Path   string   `cborgen:"path"`
	CID    *cid.Cid `cborgen:"cid"`
}

// Commit is a decoded "#commit" message, with the CAR slice already loaded in to a block store.
type Commit struct {
	Repo   string    `cborgen:"repo"`
	Seq    int64     `cborgen:"seq"`
	Rev    string    `cborgen:"rev"`
	Time   string    `cborgen:"time"`
	TooBig bool      `cborgen:"tooBig"`
	Ops    []*RepoOp `cborgen:"ops"`

	// raw CAR bytes, only held until the block store is loaded
	blocks []byte

	Blocks *repo.BlockStore `cborgen:"-"`
}

// DecodeFrame parses one binary websocket message.
//
// Frames which are not repo commits (identity, account, info, unknown message types) return nil with no error. Relay error frames are returned as an [*ErrorFrame] error. Anything unparseable, including a corrupt CAR slice, returns an error wrapping [ErrDecode].
func DecodeFrame(ctx context.Context, frame []byte) (*Commit, error) {
	cr := cbg.NewCborReader(bytes.NewReader(frame))

	var header EventHeader
	if err := header.UnmarshalCBOR(cr); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrDecode, err)
	}

	switch header.Op {
	case EvtKindMessage:
		// handled below
	case EvtKindErrorFrame:
		var ef ErrorFrame
		if err := ef.UnmarshalCBOR(cr); err != nil {
			return nil, fmt.Errorf("%w: reading error frame: %w", ErrDecode, err)
		}
		return nil, &ef
	default:
		return nil, nil
	}

	if header.MsgType != "#commit" {
		return nil, nil
	}

	var commit Commit
	if err := commit.UnmarshalCBOR(cr); err != nil {
		return nil, fmt.Errorf("%w: reading commit: %w", ErrDecode, err)
	}

	if commit.TooBig || len(commit.blocks) == 0 {
		commit.Blocks = repo.NewBlockStore()
		commit.blocks = nil
		return &commit, nil
	}

	bs, err := repo.LoadBlocksFromCAR(ctx, bytes.NewReader(commit.blocks))
	if err != nil {
		return nil, fmt.Errorf("%w: reading commit blocks (seq=%d): %w", ErrDecode, commit.Seq, err)
	}
	commit.Blocks = bs
	commit.blocks = nil
	return &commit, nil
}

func (t *EventHeader) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	n, err := readMapHeader(cr)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		key, err := cbg.ReadString(cr)
		if err != nil {
			return err
		}
		switch key {
		case "op":
			t.Op, err = readInt(cr)
		case "t":
			t.MsgType, err = cbg.ReadString(cr)
		default:
			err = skipValue(cr)
		}
		if err != nil {
			return fmt.Errorf("EventHeader.%s: %w", key, err)
		}
	}
	return nil
}

func (t *ErrorFrame) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	n, err := readMapHeader(cr)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		key, err := cbg.ReadString(cr)
		if err != nil {
			return err
		}
		switch key {
		case "error":
			t.Name, err = cbg.ReadString(cr)
		case "message":
			t.Message, err = readNullableString(cr)
		default:
			err = skipValue(cr)
		}
		if err != nil {
			return fmt.Errorf("ErrorFrame.%s: %w", key, err)
		}
	}
	return nil
}

func (t *Commit) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	n, err := readMapHeader(cr)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		key, err := cbg.ReadString(cr)
		if err != nil {
			return err
		}
		switch key {
		case "repo":
			t.Repo, err = cbg.ReadString(cr)
		case "seq":
			t.Seq, err = readInt(cr)
		case "rev":
			t.Rev, err = cbg.ReadString(cr)
		case "time":
			t.Time, err = cbg.ReadString(cr)
		case "tooBig":
			t.TooBig, err = readBool(cr)
		case "blocks":
			t.blocks, err = cbg.ReadByteArray(cr, MaxBlocksSize)
		case "ops":
			t.Ops, err = readOps(cr)
		default:
			// commit, since, blobs, prevData, rebase: not needed here
			err = skipValue(cr)
		}
		if err != nil {
			return fmt.Errorf("Commit.%s: %w", key, err)
		}
	}
	return nil
}

func (t *RepoOp) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	n, err := readMapHeader(cr)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		key, err := cbg.ReadString(cr)
		if err != nil {
			return err
		}
		switch key {
		case "action":
			t.Action, err = cbg.ReadString(cr)
		case "path":
			t.Path, err = cbg.ReadString(cr)
		case "cid":
			t.CID, err = readNullableCid(cr)
		default:
			err = skipValue(cr)
		}
		if err != nil {
			return fmt.Errorf("RepoOp.%s: %w", key, err)
		}
	}
	return nil
}

func readOps(cr *cbg.CborReader) ([]*RepoOp, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return nil, err
	}
	if maj != cbg.MajArray {
		return nil, fmt.Errorf("expected cbor array")
	}
	if extra > cbg.MaxLength {
		return nil, fmt.Errorf("array too large (%d)", extra)
	}
	ops := make([]*RepoOp, 0, extra)
	for i := uint64(0); i < extra; i++ {
		var op RepoOp
		if err := op.UnmarshalCBOR(cr); err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		ops = append(ops, &op)
	}
	return ops, nil
}

func readMapHeader(cr *cbg.CborReader) (uint64, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return 0, err
	}
	if maj != cbg.MajMap {
		return 0, fmt.Errorf("cbor input should be of type map")
	}
	if extra > cbg.MaxLength {
		return 0, fmt.Errorf("map too large (%d)", extra)
	}
	return extra, nil
}

func readInt(cr *cbg.CborReader) (int64, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return 0, err
	}
	if extra > math.MaxInt64 {
		return 0, fmt.Errorf("integer overflow")
	}
	switch maj {
	case cbg.MajUnsignedInt:
		return int64(extra), nil
	case cbg.MajNegativeInt:
		return -1 - int64(extra), nil
	default:
		return 0, fmt.Errorf("wrong type for int64 field: %d", maj)
	}
}

func readBool(cr *cbg.CborReader) (bool, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return false, err
	}
	if maj != cbg.MajOther {
		return false, fmt.Errorf("booleans must be major type 7")
	}
	switch extra {
	case 20:
		return false, nil
	case 21:
		return true, nil
	default:
		return false, fmt.Errorf("booleans are either major type 7, value 20 or 21 (got %d)", extra)
	}
}

func readNullableCid(cr *cbg.CborReader) (*cid.Cid, error) {
	b, err := cr.ReadByte()
	if err != nil {
		return nil, err
	}
	if b == cbg.CborNull[0] {
		return nil, nil
	}
	if err := cr.UnreadByte(); err != nil {
		return nil, err
	}
	c, err := cbg.ReadCid(cr)
	if err != nil {
		return nil, fmt.Errorf("failed to read cid field: %w", err)
	}
	return &c, nil
}

func readNullableString(cr *cbg.CborReader) (string, error) {
	b, err := cr.ReadByte()
	if err != nil {
		return "", err
	}
	if b == cbg.CborNull[0] {
		return "", nil
	}
	if err := cr.UnreadByte(); err != nil {
		return "", err
	}
	return cbg.ReadString(cr)
}

// consumes one complete CBOR value, however deeply nested
func skipValue(cr *cbg.CborReader) error {
	return cbg.ScanForLinks(cr, func(cid.Cid) {})
}
