package diagnostic

import (
	"strings"
	"testing"
)

func TestLineIndexPositions(t *testing.T) {
	source := "abc\ndef\n\nxyz"
	ix := NewLineIndex(source)

	tests := []struct {
		offset, line, column int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{4, 2, 1},
		{6, 2, 3},
		{8, 3, 1},
		{9, 4, 1},
		{11, 4, 3},
	}
	for _, tt := range tests {
		p := ix.Position(tt.offset)
		if p.Line != tt.line || p.Column != tt.column {
			t.Errorf("Position(%d) = %d:%d, want %d:%d",
				tt.offset, p.Line, p.Column, tt.line, tt.column)
		}
	}
}

func TestListFormat(t *testing.T) {
	source := "var x : bogus;\n"
	l := NewList("model.m", source)
	l.AddError(8, "unknown symbol: bogus")

	if !l.HasErrors() {
		t.Fatal("HasErrors() = false after AddError")
	}

	out := l.Format()
	if !strings.Contains(out, "model.m:1:9: error: unknown symbol: bogus") {
		t.Errorf("missing location line:\n%s", out)
	}
	if !strings.Contains(out, "var x : bogus;") {
		t.Errorf("missing source context:\n%s", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("missing caret:\n%s", out)
	}
}

func TestAddErrorAt(t *testing.T) {
	l := NewList("m.m", "")
	l.AddErrorAt(3, 7, "boom")
	d := l.Diagnostics()[0]
	if d.Position.Line != 3 || d.Position.Column != 7 {
		t.Errorf("position = %d:%d", d.Position.Line, d.Position.Column)
	}
	if got := d.Error(); !strings.Contains(got, "3:7") {
		t.Errorf("Error() = %q", got)
	}
}

func TestNoErrors(t *testing.T) {
	l := NewList("m.m", "x")
	if l.HasErrors() || l.Count() != 0 || l.Format() != "" {
		t.Error("fresh list reports errors")
	}
}
