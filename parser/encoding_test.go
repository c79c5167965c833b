package parser

import (
	"reflect"
	"testing"
)

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestDecodeBytes(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantText string
		wantEnc  string
		wantLoss bool
	}{
		{
			name:     "plain utf-8",
			data:     []byte("NodeId\tA\n"),
			wantText: "NodeId\tA\n",
			wantEnc:  "utf-8",
		},
		{
			name:     "utf-8 with BOM",
			data:     append([]byte{0xEF, 0xBB, 0xBF}, []byte("NodeId")...),
			wantText: "NodeId",
			wantEnc:  "utf-8-sig",
		},
		{
			name:     "utf-16 little endian with BOM",
			data:     append([]byte{0xFF, 0xFE}, utf16le("NodeId\tA")...),
			wantText: "NodeId\tA",
			wantEnc:  "utf-16",
		},
		{
			name:     "utf-16le without BOM",
			data:     utf16le("NodeId\tGUtranCellRelationId\n"),
			wantText: "NodeId\tGUtranCellRelationId\n",
			wantEnc:  "utf-16le",
		},
		{
			name:     "cp1252",
			data:     []byte{'c', 'a', 'f', 0xE9},
			wantText: "café",
			wantEnc:  "cp1252",
		},
		{
			name:     "undecodable falls back lossy",
			data:     []byte{'a', 0x81, 'b'},
			wantText: "a�b",
			wantEnc:  "utf-8",
			wantLoss: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeBytes(tt.data)
			if got.Text != tt.wantText {
				t.Errorf("text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Encoding != tt.wantEnc {
				t.Errorf("encoding = %q, want %q", got.Encoding, tt.wantEnc)
			}
			if got.Lossy != tt.wantLoss {
				t.Errorf("lossy = %v, want %v", got.Lossy, tt.wantLoss)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"unix", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"empty", "", nil},
		{"blank line kept", "a\n\nb\n", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitLines(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
