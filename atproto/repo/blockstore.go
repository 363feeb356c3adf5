package repo

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
)

// BlockStore is the content-addressed block map carried by a single firehose commit.
//
// It is only ever populated by one goroutine (the frame decoder) and is read-only afterwards.
type BlockStore struct {
	roots  []cid.Cid
	blocks map[string]blocks.Block
}

func NewBlockStore() *BlockStore {
	return &BlockStore{blocks: make(map[string]blocks.Block, 20)}
}

func (bs *BlockStore) Put(_ context.Context, block blocks.Block) error {
	bs.blocks[block.Cid().KeyString()] = block
	return nil
}

// Get returns an [ipld.ErrNotFound] if the CID is not in the store.
func (bs *BlockStore) Get(_ context.Context, c cid.Cid) (blocks.Block, error) {
	block, found := bs.blocks[c.KeyString()]
	if found {
		return block, nil
	}
	return nil, &ipld.ErrNotFound{Cid: c}
}

func (bs *BlockStore) Has(_ context.Context, c cid.Cid) (bool, error) {
	_, found := bs.blocks[c.KeyString()]
	return found, nil
}

// Raw block bytes for a CID, with a boolean instead of an error for the common "not included" case.
func (bs *BlockStore) RawData(c cid.Cid) ([]byte, bool) {
	block, found := bs.blocks[c.KeyString()]
	if !found {
		return nil, false
	}
	return block.RawData(), true
}

func (bs *BlockStore) Len() int {
	return len(bs.blocks)
}

// Root CIDs from the CAR header. For commit frames the first root is the commit object.
func (bs *BlockStore) Roots() []cid.Cid {
	return bs.roots
}
