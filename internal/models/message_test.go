package models

import "testing"

func TestMessageAuthorFallback(t *testing.T) {
	t.Parallel()
	m := Message{AuthorUID: "a", UID: "legacy"}
	if m.Author() != "a" {
		t.Fatalf("author = %q", m.Author())
	}
	m = Message{UID: "legacy"}
	if m.Author() != "legacy" {
		t.Fatalf("author = %q, want the legacy field", m.Author())
	}
}

func TestMessageBodyFallback(t *testing.T) {
	t.Parallel()
	m := Message{Text: "new", Content: "old"}
	if m.Body() != "new" {
		t.Fatalf("body = %q", m.Body())
	}
	m = Message{Content: "old"}
	if m.Body() != "old" {
		t.Fatalf("body = %q, want the legacy field", m.Body())
	}
}

func TestMessageEmpty(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		msg   Message
		empty bool
	}{
		{name: "text message with text", msg: Message{Kind: MessageKindText, Text: "hi"}, empty: false},
		{name: "text message without text", msg: Message{Kind: MessageKindText}, empty: true},
		{name: "whitespace only", msg: Message{Kind: MessageKindText, Text: "   "}, empty: true},
		{name: "file without caption", msg: Message{Kind: MessageKindFile}, empty: false},
		{name: "gif without caption", msg: Message{Kind: MessageKindGif}, empty: false},
		{name: "poll", msg: Message{Kind: MessageKindPoll}, empty: false},
		{name: "form", msg: Message{Kind: MessageKindForm}, empty: false},
		{name: "unknown kind without text", msg: Message{Kind: "sticker"}, empty: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Empty(); got != tt.empty {
				t.Fatalf("Empty() = %v, want %v", got, tt.empty)
			}
		})
	}
}

func TestMentionKindMerge(t *testing.T) {
	t.Parallel()
	order := []MentionKind{KindChannel, KindEveryone, KindHere, KindRole, KindDirect, KindDM}
	for i := 1; i < len(order); i++ {
		if order[i].Priority() <= order[i-1].Priority() {
			t.Fatalf("%s priority %d not above %s priority %d",
				order[i], order[i].Priority(), order[i-1], order[i-1].Priority())
		}
	}
}

func TestMentionKindLabel(t *testing.T) {
	t.Parallel()
	if KindDirect.Label() != "[mention] " || KindHere.Label() != "[here] " {
		t.Fatal("mention labels wrong")
	}
	if KindDM.Label() != "" || KindChannel.Label() != "" {
		t.Fatal("dm and channel messages must carry no label")
	}
}
