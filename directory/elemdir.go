package directory

import "github.com/ToshinoriTsuboi/dma-virtual-memory/bitcodec"

// ElemDirectory maps a block id to {offset, logical page id}, the VMF
// variant's per-block record. A page id equal to NullPage marks a bid as
// unused. Mirrors virtual_multiheap_fit.c's block_info_t (VMF's reuse of
// the name for a different field pair than MF's BlockDirectory).
type ElemDirectory struct {
	ofsCodec  bitcodec.Codec
	pageCodec bitcodec.Codec
	stride    int
	data      []byte
	nullPage  uint64
}

// NewElemDirectory allocates a directory for up to maxElems block ids,
// with offsets packed into ofsByte bytes and page ids into pageByte
// bytes. Every id starts pointing at the null page. Mirrors
// block_info_init's VMF variant plus its initial all-ones memset.
func NewElemDirectory(ofsByte, pageByte, maxElems int) *ElemDirectory {
	ofsCodec := bitcodec.New(ofsByte)
	pageCodec := bitcodec.New(pageByte)
	d := &ElemDirectory{
		ofsCodec:  ofsCodec,
		pageCodec: pageCodec,
		stride:    ofsByte + pageByte,
		data:      make([]byte, (ofsByte+pageByte)*maxElems),
		nullPage:  pageCodec.MaxValue(),
	}
	for id := 0; id < maxElems; id++ {
		d.PutPage(id, d.nullPage)
	}
	return d
}

func (d *ElemDirectory) record(id int) []byte {
	start := id * d.stride
	return d.data[start : start+d.stride]
}

// NullPage is the sentinel page id meaning "bid is not allocated".
func (d *ElemDirectory) NullPage() uint64 { return d.nullPage }

// IsNull reports whether id currently has no live block. Mirrors
// vmf_is_null.
func (d *ElemDirectory) IsNull(id int) bool { return d.Page(id) == d.nullPage }

// Offset returns the stored byte offset for id. Mirrors
// block_info_get_ofs.
func (d *ElemDirectory) Offset(id int) uint64 {
	return d.ofsCodec.ReadUint(d.record(id))
}

// PutOffset stores ofs for id. Mirrors block_info_put_ofs.
func (d *ElemDirectory) PutOffset(id int, ofs uint64) {
	d.ofsCodec.WriteUint(d.record(id), ofs)
}

// Page returns the stored logical page id for id. Mirrors
// block_info_get_pid.
func (d *ElemDirectory) Page(id int) uint64 {
	r := d.record(id)
	return d.pageCodec.ReadUint(r[d.ofsCodec.Width():])
}

// PutPage stores page for id. Mirrors block_info_put_pid.
func (d *ElemDirectory) PutPage(id int, page uint64) {
	r := d.record(id)
	d.pageCodec.WriteUint(r[d.ofsCodec.Width():], page)
}

// PutAll stores both fields for id in one call, the common case on
// allocate. Mirrors block_info_push.
func (d *ElemDirectory) PutAll(id int, ofs, page uint64) {
	r := d.record(id)
	d.ofsCodec.WriteUint(r, ofs)
	d.pageCodec.WriteUint(r[d.ofsCodec.Width():], page)
}

// PutNullPage marks id as unallocated without touching its offset field.
// Mirrors block_info_fastput_null_page.
func (d *ElemDirectory) PutNullPage(id int) {
	d.PutPage(id, d.nullPage)
}

// UsingMem reports the directory's fixed footprint in bytes. Mirrors
// block_info_get_size.
func (d *ElemDirectory) UsingMem() int { return len(d.data) }
