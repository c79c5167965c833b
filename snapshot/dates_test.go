package snapshot

import (
	"testing"
	"time"
)

var ref2025 = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name   string
		folder string
		want   string
	}{
		{
			name:   "iso with separators",
			folder: "Pre_Step0_2025-01-03",
			want:   "2025-01-03",
		},
		{
			name:   "compact eight digits",
			folder: "Post_20250103",
			want:   "2025-01-03",
		},
		{
			name:   "six digit blob prefers current year reading",
			folder: "Post_250103",
			want:   "2025-01-03",
		},
		{
			name:   "underscore separated",
			folder: "Pre_2025_1_3",
			want:   "2025-01-03",
		},
		{
			name:   "ambiguous numeric reads month first",
			folder: "Post_03-01-2025",
			want:   "2025-03-01",
		},
		{
			name:   "day month year when day exceeds twelve",
			folder: "Post_25-01-2025",
			want:   "2025-01-25",
		},
		{
			name:   "month name",
			folder: "Pre_Jan-03-2025",
			want:   "2025-01-03",
		},
		{
			name:   "compact month name",
			folder: "Post 03Jan2025",
			want:   "2025-01-03",
		},
		{
			name:   "no date at all",
			folder: "Pre_Step0",
			want:   "",
		},
		{
			name:   "plain folder",
			folder: "PostChecks",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDate(tt.folder, ref2025); got != tt.want {
				t.Errorf("ExtractDate(%q) = %q, want %q", tt.folder, got, tt.want)
			}
		})
	}
}

func TestExtractDateTwoDigitYearWindow(t *testing.T) {
	// 2-digit years land in [1970, 2069].
	if got := ExtractDate("Pre_25-01-71", ref2025); got != "1971-01-25" {
		t.Errorf("got %q, want 1971-01-25", got)
	}
	if got := ExtractDate("Pre_25-01-69", ref2025); got != "2069-01-25" {
		t.Errorf("got %q, want 2069-01-25", got)
	}
}

func TestExtractDateSeparatorPreference(t *testing.T) {
	// Same calendar day available with and without separators: the
	// separated candidate wins when neither lands in the current year.
	if got := ExtractDate("Post_2020-02-02", ref2025); got != "2020-02-02" {
		t.Errorf("got %q, want 2020-02-02", got)
	}
}

func TestDetectSide(t *testing.T) {
	tests := []struct {
		folder string
		want   string
	}{
		{"Pre_20250103", SidePre},
		{"STEP0_dump", SidePre},
		{"post-run", SidePost},
		{"Step3", SidePost},
		{"baseline", ""},
		{"PRESTEP", SidePre},
	}
	for _, tt := range tests {
		if got := DetectSide(tt.folder); got != tt.want {
			t.Errorf("DetectSide(%q) = %q, want %q", tt.folder, got, tt.want)
		}
	}
}
