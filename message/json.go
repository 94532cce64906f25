package message

import (
	"fmt"
	"slices"

	"github.com/bytedance/sonic"
)

var _ Message = (*JSON)(nil)

// JSON is an atomic structured payload, e.g. a decoding result.
type JSON struct {
	Base

	Payload []byte
}

func NewJSON(time uint64, payload []byte) *JSON {
	return &JSON{
		Base:    newBase(time),
		Payload: payload,
	}
}

// NewJSONFrom encodes v as the payload of a new message.
func NewJSONFrom(time uint64, v any) (*JSON, error) {
	payload, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewJSON(time, payload), nil
}

// Decode unmarshals the payload into v.
func (j *JSON) Decode(v any) error {
	return sonic.Unmarshal(j.Payload, v)
}

func (j *JSON) TypeID() TypeID {
	return TypeJSON
}

func (j *JSON) Clone() Message {
	return &JSON{
		Base:    j.cloneBase(),
		Payload: slices.Clone(j.Payload),
	}
}

func (j *JSON) Describe() string {
	return fmt.Sprintf("%s payload=%s", j.describeBase("json"), j.Payload)
}

func (j *JSON) MergeWith(other Message) (Message, error) {
	return other, nil
}

func (j *JSON) CanSliceAt(sliceTime uint64, _ []Message, _ int64) bool {
	return j.time == sliceTime
}

func (j *JSON) SliceOut(sliceTime uint64, stream []Message, _ int64) (Message, []Message, bool) {
	return sliceWhole(sliceTime, stream)
}
