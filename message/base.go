package message

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Base holds the attributes shared by every message kind.
// Concrete kinds embed it.
type Base struct {
	span trace.SpanContext

	tag         string
	time        uint64
	descriptors map[string]string
}

func newBase(time uint64) Base {
	return Base{
		time:        time,
		descriptors: make(map[string]string),
	}
}

func (b *Base) SaveSpan(span trace.Span) {
	b.span = span.SpanContext()
}

func (b *Base) LoadSpanContext(ctx context.Context) context.Context {
	return trace.ContextWithSpanContext(ctx, b.span)
}

func (b *Base) Tag() string {
	return b.tag
}

func (b *Base) SetTag(tag string) {
	b.tag = tag
}

func (b *Base) Time() uint64 {
	return b.time
}

func (b *Base) SetTime(time uint64) {
	b.time = time
}

func (b *Base) ShiftInTime(delta int64) {
	b.time = uint64(int64(b.time) + delta)
}

func (b *Base) Descriptor(key string) string {
	return b.descriptors[key]
}

func (b *Base) SetDescriptor(key, value string) {
	if b.descriptors == nil {
		b.descriptors = make(map[string]string)
	}
	b.descriptors[key] = value
}

// FullDescriptorString returns every descriptor as "key=value;" pairs sorted by key.
func (b *Base) FullDescriptorString() string {
	sb := strings.Builder{}
	for _, key := range slices.Sorted(maps.Keys(b.descriptors)) {
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(b.descriptors[key])
		sb.WriteByte(';')
	}
	return sb.String()
}

// SetFullDescriptorString replaces the descriptors with the
// "key=value;" pairs of the given string.
func (b *Base) SetFullDescriptorString(descriptors string) error {
	parsed := make(map[string]string)

	for pair := range strings.SplitSeq(descriptors, ";") {
		if pair == "" {
			continue
		}

		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("message: malformed descriptor %q", pair)
		}
		parsed[key] = value
	}

	b.descriptors = parsed
	return nil
}

func (b *Base) sameDescriptors(other *Base) bool {
	return maps.Equal(b.descriptors, other.descriptors)
}

func (b *Base) cloneBase() Base {
	return Base{
		span:        b.span,
		tag:         b.tag,
		time:        b.time,
		descriptors: maps.Clone(b.descriptors),
	}
}

func (b *Base) describeBase(kind string) string {
	return fmt.Sprintf("%s tag=%s time=%d descriptors=%q", kind, b.tag, b.time, b.FullDescriptorString())
}

// sliceWhole pops the head of the stream when it ends exactly at sliceTime.
func sliceWhole(sliceTime uint64, stream []Message) (Message, []Message, bool) {
	if len(stream) == 0 || stream[0].Time() != sliceTime {
		return nil, stream, false
	}
	return stream[0], stream[1:], true
}
