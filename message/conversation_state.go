package message

import (
	"fmt"
)

// DescriptorIgnoreData marks the data of an utterance as ignorable downstream.
const DescriptorIgnoreData = "ignore_data"

var _ Message = (*ConversationState)(nil)

// ConversationState tracks which utterance and conversation the
// data of the parallel streams belongs to.
type ConversationState struct {
	Base

	UtteranceID        string
	LastInUtterance    bool
	ConversationID     string
	LastInConversation bool
}

func NewConversationState(time uint64, utteranceID string, lastInUtterance bool, conversationID string, lastInConversation bool) *ConversationState {
	return &ConversationState{
		Base: newBase(time),

		UtteranceID:        utteranceID,
		LastInUtterance:    lastInUtterance,
		ConversationID:     conversationID,
		LastInConversation: lastInConversation,
	}
}

func (cs *ConversationState) TypeID() TypeID {
	return TypeConversationState
}

// IgnoreData reports whether the ignore_data descriptor is set to "true".
func (cs *ConversationState) IgnoreData() bool {
	return cs.Descriptor(DescriptorIgnoreData) == "true"
}

func (cs *ConversationState) Clone() Message {
	clone := *cs
	clone.Base = cs.cloneBase()
	return &clone
}

func (cs *ConversationState) Describe() string {
	return fmt.Sprintf("%s utterance=%s last_in_utterance=%t conversation=%s last_in_conversation=%t",
		cs.describeBase("conversation_state"), cs.UtteranceID, cs.LastInUtterance, cs.ConversationID, cs.LastInConversation)
}

func (cs *ConversationState) MergeWith(other Message) (Message, error) {
	next, ok := other.(*ConversationState)
	if !ok {
		return other, nil
	}

	switch {
	case !cs.LastInUtterance && cs.UtteranceID != next.UtteranceID:
		return nil, fmt.Errorf("%w: utterance %q not finished but next state is for %q", ErrMergeMismatch, cs.UtteranceID, next.UtteranceID)
	case cs.LastInUtterance && cs.UtteranceID == next.UtteranceID:
		return nil, fmt.Errorf("%w: utterance %q already finished", ErrMergeMismatch, cs.UtteranceID)
	case !cs.LastInConversation && cs.ConversationID != next.ConversationID:
		return nil, fmt.Errorf("%w: conversation %q not finished but next state is for %q", ErrMergeMismatch, cs.ConversationID, next.ConversationID)
	case cs.LastInConversation && cs.ConversationID == next.ConversationID:
		return nil, fmt.Errorf("%w: conversation %q already finished", ErrMergeMismatch, cs.ConversationID)
	}

	// A closed utterance is kept as its own entry
	if cs.LastInUtterance {
		return other, nil
	}

	cs.time = next.time
	cs.LastInUtterance = next.LastInUtterance
	cs.LastInConversation = next.LastInConversation

	return nil, nil
}

func (cs *ConversationState) CanSliceAt(_ uint64, _ []Message, _ int64) bool {
	return true
}

func (cs *ConversationState) SliceOut(sliceTime uint64, stream []Message, _ int64) (Message, []Message, bool) {
	if cs.time == sliceTime {
		return cs, stream[1:], true
	}

	slice := NewConversationState(sliceTime, cs.UtteranceID, false, cs.ConversationID, false)
	slice.span = cs.span
	slice.tag = cs.tag
	slice.SetDescriptor(DescriptorIgnoreData, cs.Descriptor(DescriptorIgnoreData))

	return slice, stream, true
}
