package transfer

import (
	"reflect"
	"testing"
)

func TestNewFiles(t *testing.T) {
	tests := []struct {
		name     string
		sources  []string
		archived []string
		want     []string
	}{
		{
			name:    "empty archive copies everything",
			sources: []string{"/card/DCIM/100GOPRO/A.MP4", "/card/DCIM/100GOPRO/B.MP4"},
			want:    []string{"/card/DCIM/100GOPRO/A.MP4", "/card/DCIM/100GOPRO/B.MP4"},
		},
		{
			name:     "overlapping basenames excluded",
			sources:  []string{"/card/DCIM/100GOPRO/A.MP4", "/card/DCIM/101GOPRO/B.MP4", "/card/DCIM/101GOPRO/C.MP4"},
			archived: []string{"/home/pi/videos/B.MP4", "/home/pi/videos/Z.MP4"},
			want:     []string{"/card/DCIM/100GOPRO/A.MP4", "/card/DCIM/101GOPRO/C.MP4"},
		},
		{
			name:     "everything archived",
			sources:  []string{"/card/DCIM/100GOPRO/A.MP4"},
			archived: []string{"/home/pi/videos/A.MP4"},
			want:     nil,
		},
		{
			name:     "comparison is case sensitive",
			sources:  []string{"/card/DCIM/100GOPRO/a.mp4"},
			archived: []string{"/home/pi/videos/A.MP4"},
			want:     []string{"/card/DCIM/100GOPRO/a.mp4"},
		},
		{
			name:    "duplicate basenames on card keep first",
			sources: []string{"/card/DCIM/100GOPRO/A.MP4", "/card/DCIM/101GOPRO/A.MP4"},
			want:    []string{"/card/DCIM/100GOPRO/A.MP4"},
		},
		{
			name: "no sources",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFiles(tt.sources, tt.archived)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("NewFiles() = %v, want %v", got, tt.want)
			}
		})
	}
}
