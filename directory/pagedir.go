package directory

import "github.com/ToshinoriTsuboi/dma-virtual-memory/bitcodec"

// PageDirectory maps a logical page id to {prev, next, offset, size
// class}, the VMF variant's per-page record, plus a stack of free page
// ids. Mirrors page_info_t's variable-length-integer mode.
//
// The original additionally keeps a small fixed-size inline array
// (pool_stack) in front of a heap-backed overflow stack for free ids, to
// avoid a pseudo-heap round trip for the common case. This directory
// keeps the same push/pop semantics over one Go slice instead; the slice
// already amortizes growth the way append() always has, so the inline
// fast path has no equivalent benefit in Go.
type PageDirectory struct {
	prevCodec bitcodec.Codec
	nextCodec bitcodec.Codec
	ofsCodec  bitcodec.Codec
	scCodec   bitcodec.Codec
	stride    int
	data      []byte
	freeIDs   []uint64
}

// NewPageDirectory allocates a directory for up to maxElems logical
// pages. pageByte sizes the prev/next fields, ofsByte sizes the offset
// and size-class fields. Mirrors page_info_init.
func NewPageDirectory(pageByte, ofsByte, maxElems int) *PageDirectory {
	prevCodec := bitcodec.New(pageByte)
	nextCodec := bitcodec.New(pageByte)
	ofsCodec := bitcodec.New(ofsByte)
	scCodec := bitcodec.New(ofsByte)
	stride := 2*pageByte + 2*ofsByte
	return &PageDirectory{
		prevCodec: prevCodec,
		nextCodec: nextCodec,
		ofsCodec:  ofsCodec,
		scCodec:   scCodec,
		stride:    stride,
		data:      make([]byte, stride*maxElems),
	}
}

func (d *PageDirectory) record(id int) []byte {
	start := id * d.stride
	return d.data[start : start+d.stride]
}

// Prev returns the logical page linked before id in its size class's
// list. Mirrors page_info_get_prev.
func (d *PageDirectory) Prev(id int) uint64 {
	return d.prevCodec.ReadUint(d.record(id))
}

// PutPrev stores prev for id. Mirrors page_info_put_prev.
func (d *PageDirectory) PutPrev(id int, prev uint64) {
	d.prevCodec.WriteUint(d.record(id), prev)
}

// Next returns the logical page linked after id. Mirrors
// page_info_get_next.
func (d *PageDirectory) Next(id int) uint64 {
	r := d.record(id)
	return d.nextCodec.ReadUint(r[d.prevCodec.Width():])
}

// PutNext stores next for id. Mirrors page_info_put_next.
func (d *PageDirectory) PutNext(id int, next uint64) {
	r := d.record(id)
	d.nextCodec.WriteUint(r[d.prevCodec.Width():], next)
}

func (d *PageDirectory) offsetField(id int) []byte {
	r := d.record(id)
	return r[d.prevCodec.Width()+d.nextCodec.Width():]
}

// Offset returns the first free byte offset within id's page. Mirrors
// page_info_get_offset.
func (d *PageDirectory) Offset(id int) uint64 {
	return d.ofsCodec.ReadUint(d.offsetField(id))
}

// PutOffset stores the first free byte offset for id. Mirrors
// page_info_put_offset.
func (d *PageDirectory) PutOffset(id int, ofs uint64) {
	d.ofsCodec.WriteUint(d.offsetField(id), ofs)
}

// SizeClass returns the size class id's page is linked into. Mirrors
// page_info_get_sc.
func (d *PageDirectory) SizeClass(id int) uint64 {
	r := d.offsetField(id)
	return d.scCodec.ReadUint(r[d.ofsCodec.Width():])
}

// PutSizeClass stores the size class for id. Mirrors page_info_put_sc.
func (d *PageDirectory) PutSizeClass(id int, sc uint64) {
	r := d.offsetField(id)
	d.scCodec.WriteUint(r[d.ofsCodec.Width():], sc)
}

// PutAll stores prev, next, offset, and size class for id in one call,
// the common case when a freshly assigned page id is spliced into a
// class's list (see vmf's insert_page). Mirrors page_info_replace, whose
// name in the original refers to replacing a page id's entire record
// with freshly computed field values, not copying from another record.
func (d *PageDirectory) PutAll(id int, prev, next, ofs, sc uint64) {
	d.PutPrev(id, prev)
	d.PutNext(id, next)
	d.PutOffset(id, ofs)
	d.PutSizeClass(id, sc)
}

// NullPage returns the sentinel page id this directory's prev/next
// fields use to mean "no page", the largest value representable in the
// configured page-id width. Mirrors vmf_main_t's null_page.
func (d *PageDirectory) NullPage() uint64 {
	return d.prevCodec.MaxValue()
}

// PushFreeID returns id to the free stack. Mirrors page_info_push_freeid.
func (d *PageDirectory) PushFreeID(id uint64) {
	d.freeIDs = append(d.freeIDs, id)
}

// PopFreeID removes and returns the most recently freed id, false if the
// stack is empty. Mirrors page_info_pop_freeid, minus its "mapping"
// out-parameter: every id on this stack had its frame released when it
// was pushed, so an id popped here always needs fresh backing; the tier
// of ids that keep their mapping is kept by the caller (vmf's page pool),
// not by this type.
func (d *PageDirectory) PopFreeID() (uint64, bool) {
	if len(d.freeIDs) == 0 {
		return 0, false
	}
	id := d.freeIDs[len(d.freeIDs)-1]
	d.freeIDs = d.freeIDs[:len(d.freeIDs)-1]
	return id, true
}

// UsingMem reports the directory's fixed footprint in bytes, plus the
// free-id stack's current backing size. Mirrors get_size_page_info.
func (d *PageDirectory) UsingMem() int {
	return len(d.data) + len(d.freeIDs)*8
}
