package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestWriteMatches_JSON(t *testing.T) {
	matches := []models.ChunkMatch{
		{DocumentID: "doc-1", Chunk: "Content here", Similarity: 0.5, Distance: 1},
	}
	var buf bytes.Buffer
	if err := WriteMatches(&buf, "test query", matches, OutputJSON); err != nil {
		t.Fatalf("WriteMatches(json): %v", err)
	}
	var decoded matchesOutput
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "test query" || len(decoded.Matches) != 1 || decoded.Matches[0] != matches[0] {
		t.Fatalf("decoded = %+v", decoded)
	}
	if !strings.Contains(buf.String(), `"doc": "doc-1"`) {
		t.Errorf("expected doc field in output:\n%s", buf.String())
	}
}

func TestWriteMatches_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, "q", nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"matches": []`) {
		t.Errorf("empty matches should encode as []:\n%s", buf.String())
	}
}

func TestWriteMatches_Text(t *testing.T) {
	long := strings.Repeat("word ", 100)
	matches := []models.ChunkMatch{
		{DocumentID: "a.txt", Chunk: "first\nline", Similarity: 1, Distance: 0},
		{DocumentID: "b.txt", Chunk: long, Similarity: 0.25, Distance: 3},
	}
	var buf bytes.Buffer
	if err := WriteMatches(&buf, "question", matches, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`Found 2 matching chunks for "question"`,
		"Rank: 1 | Similarity: 1.0000 | Distance: 0.0000",
		"Document: b.txt",
		"first line",
		"...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteChunks(t *testing.T) {
	doc := models.Document{ID: "f.txt", Chunks: []string{"a b", "b c"}}
	var buf bytes.Buffer
	if err := WriteChunks(&buf, doc, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "f.txt: 2 chunks") || !strings.Contains(buf.String(), "[1] b c") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "json": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}
