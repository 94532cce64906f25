package message

import (
	"fmt"
	"slices"
)

var _ Message = (*Binary)(nil)

// Binary is an atomic opaque payload described by a format string.
type Binary struct {
	Base

	Data   []byte
	Format string
}

func NewBinary(time uint64, data []byte, format string) *Binary {
	return &Binary{
		Base:   newBase(time),
		Data:   data,
		Format: format,
	}
}

func (b *Binary) TypeID() TypeID {
	return TypeBinary
}

func (b *Binary) Clone() Message {
	return &Binary{
		Base:   b.cloneBase(),
		Data:   slices.Clone(b.Data),
		Format: b.Format,
	}
}

func (b *Binary) Describe() string {
	return fmt.Sprintf("%s format=%s bytes=%d", b.describeBase("binary"), b.Format, len(b.Data))
}

func (b *Binary) MergeWith(other Message) (Message, error) {
	return other, nil
}

func (b *Binary) CanSliceAt(sliceTime uint64, _ []Message, _ int64) bool {
	return b.time == sliceTime
}

func (b *Binary) SliceOut(sliceTime uint64, stream []Message, _ int64) (Message, []Message, bool) {
	return sliceWhole(sliceTime, stream)
}
