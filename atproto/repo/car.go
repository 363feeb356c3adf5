package repo

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipld/go-car"
)

var ErrNoRoot = errors.New("CAR file missing root CID")

// Reads every block of a CARv1 "slice" (as found in the 'blocks' field of a firehose commit) in to a new BlockStore.
//
// Blocks are not verified against their CIDs beyond what the CAR reader itself checks.
func LoadBlocksFromCAR(ctx context.Context, r io.Reader) (*BlockStore, error) {
	cr, err := car.NewCarReader(r)
	if err != nil {
		return nil, err
	}
	if cr.Header.Version != 1 {
		return nil, fmt.Errorf("unsupported CAR file version: %d", cr.Header.Version)
	}
	if len(cr.Header.Roots) < 1 {
		return nil, ErrNoRoot
	}

	bs := NewBlockStore()
	bs.roots = cr.Header.Roots
	for {
		blk, err := cr.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if err := bs.Put(ctx, blk); err != nil {
			return nil, err
		}
	}
	return bs, nil
}
