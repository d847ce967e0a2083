// Package directory holds the bit-packed, per-block and per-page
// administrative records the MF and VMF engines key off a block id or
// logical page id: which size class a block belongs to and where its
// bytes currently live, or which pages are linked into which size
// class's list.
package directory

import "github.com/ToshinoriTsuboi/dma-virtual-memory/bitcodec"

// BlockDirectory maps a block id to {size class, offset}, the MF
// variant's per-block record. A size class of 0 marks an id as unused.
// Mirrors block_info_t's variable-length-integer mode.
type BlockDirectory struct {
	scCodec  bitcodec.Codec
	ofsCodec bitcodec.Codec
	stride   int
	data     []byte
}

// NewBlockDirectory allocates a directory for up to maxElems block ids,
// with size classes packed into scByte bytes and offsets into ofsByte
// bytes (as computed by bitcodec.RequiredBytes over the engine's actual
// bounds). Mirrors block_info_init.
func NewBlockDirectory(scByte, ofsByte, maxElems int) *BlockDirectory {
	scCodec := bitcodec.New(scByte)
	ofsCodec := bitcodec.New(ofsByte)
	stride := scByte + ofsByte
	return &BlockDirectory{
		scCodec:  scCodec,
		ofsCodec: ofsCodec,
		stride:   stride,
		data:     make([]byte, stride*maxElems),
	}
}

func (d *BlockDirectory) record(id int) []byte {
	start := id * d.stride
	return d.data[start : start+d.stride]
}

// Offset returns the stored offset for id. Mirrors block_info_get_offset.
func (d *BlockDirectory) Offset(id int) uint64 {
	r := d.record(id)
	return d.ofsCodec.ReadUint(r[d.scCodec.Width():])
}

// PutOffset stores ofs for id. Mirrors block_info_put_offset.
func (d *BlockDirectory) PutOffset(id int, ofs uint64) {
	r := d.record(id)
	d.ofsCodec.WriteUint(r[d.scCodec.Width():], ofs)
}

// SizeClass returns the stored size class for id, 0 if id is unused.
// Mirrors block_info_get_sc.
func (d *BlockDirectory) SizeClass(id int) uint64 {
	return d.scCodec.ReadUint(d.record(id))
}

// PutSizeClass stores sc for id. Mirrors block_info_put_sc.
func (d *BlockDirectory) PutSizeClass(id int, sc uint64) {
	d.scCodec.WriteUint(d.record(id), sc)
}

// PutSizeClassAndOffset stores both fields for id in one call, the
// common case on allocate/relocate. Mirrors block_info_put_sc_and_ofs.
func (d *BlockDirectory) PutSizeClassAndOffset(id int, sc, ofs uint64) {
	r := d.record(id)
	d.scCodec.WriteUint(r, sc)
	d.ofsCodec.WriteUint(r[d.scCodec.Width():], ofs)
}

// UsingMem reports the directory's fixed footprint in bytes. Mirrors
// block_info_using_mem.
func (d *BlockDirectory) UsingMem() int { return len(d.data) }
