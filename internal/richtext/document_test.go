package richtext

import (
	"encoding/json"
	"testing"
)

func TestFromPlainText_Empty(t *testing.T) {
	doc := FromPlainText("")

	if len(doc.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(doc.Blocks))
	}
	if doc.Blocks[0].Runs != nil {
		t.Errorf("runs = %v, want nil", doc.Blocks[0].Runs)
	}
	if got := PlainText(doc); got != "" {
		t.Errorf("PlainText(sentinel) = %q, want empty", got)
	}
	if !IsEmpty(doc) {
		t.Error("IsEmpty(sentinel) = false, want true")
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"hello",
		"hello world",
		"line one\nline two",
		"first\n\nthird",
		"  leading and trailing  ",
	}
	for _, s := range cases {
		if got := PlainText(FromPlainText(s)); got != s {
			t.Errorf("round trip of %q = %q", s, got)
		}
	}
}

func TestFromPlainText_BlankLinesHaveNoRuns(t *testing.T) {
	doc := FromPlainText("a\n\nb")

	if len(doc.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(doc.Blocks))
	}
	if doc.Blocks[1].Runs != nil {
		t.Errorf("middle paragraph runs = %v, want nil", doc.Blocks[1].Runs)
	}
}

func TestToPlainText_Document(t *testing.T) {
	doc := FromPlainText("one\ntwo")

	if got := ToPlainText(doc); got != "one\ntwo" {
		t.Errorf("ToPlainText = %q", got)
	}
	if got := ToPlainText(&doc); got != "one\ntwo" {
		t.Errorf("ToPlainText(ptr) = %q", got)
	}
}

func TestToPlainText_StoredJSON(t *testing.T) {
	raw := `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"stored body"}]}]}`

	if got := ToPlainText(json.RawMessage(raw)); got != "stored body" {
		t.Errorf("ToPlainText(raw) = %q", got)
	}
	if got := ToPlainText(raw); got != "stored body" {
		t.Errorf("ToPlainText(string json) = %q", got)
	}
}

func TestToPlainText_LegacyString(t *testing.T) {
	if got := ToPlainText("plain old body"); got != "plain old body" {
		t.Errorf("got %q", got)
	}
}

func TestToPlainText_NonConformingInput(t *testing.T) {
	if got := ToPlainText(nil); got != "" {
		t.Errorf("ToPlainText(nil) = %q, want empty", got)
	}
	if got := ToPlainText(42); got != "42" {
		t.Errorf("ToPlainText(42) = %q, want \"42\"", got)
	}
	// Valid JSON but not a doc node.
	if got := ToPlainText(json.RawMessage(`{"type":"heading"}`)); got != `{"type":"heading"}` {
		t.Errorf("non-doc JSON = %q", got)
	}
}

func TestIsEmpty(t *testing.T) {
	if IsEmpty(FromPlainText("text")) {
		t.Error("document with text reported empty")
	}
	if !IsEmpty(Document{Type: TypeDoc}) {
		t.Error("zero-block document reported non-empty")
	}
}

func TestMarshalEmitsEditorShape(t *testing.T) {
	data, err := json.Marshal(FromPlainText("hi"))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"hi"}]}]}`
	if string(data) != want {
		t.Errorf("marshal = %s\nwant      %s", data, want)
	}
}
