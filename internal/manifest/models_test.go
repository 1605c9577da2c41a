package manifest

import "testing"

func TestValidCode(t *testing.T) {
	tests := []struct {
		name   string
		label  string
		number string
		want   bool
	}{
		{"standard", "ABC", "123", true},
		{"long label", "HEYDOUGA", "1234567", true},
		{"label too short", "A", "123", false},
		{"label too long", "ABCDEFGHI", "123", false},
		{"number too short", "ABC", "1", false},
		{"number too long", "ABC", "12345678", false},
		{"lowercase label", "abc", "123", false},
		{"anonymous", "UNKNOWN", "0f343b0931126a20f133d67c2b018a3b1e8f2f4b6d7e0c9a5f1e2d3c4b5a6978", true},
		{"anonymous bad fingerprint", "UNKNOWN", "deadbeef", false},
		{"anonymous uppercase hex", "UNKNOWN", "0F343B0931126A20F133D67C2B018A3B1E8F2F4B6D7E0C9A5F1E2D3C4B5A6978", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCode(tt.label, tt.number); got != tt.want {
				t.Fatalf("ValidCode(%q, %q) = %v, want %v", tt.label, tt.number, got, tt.want)
			}
		})
	}
}

func TestSuffixAllowed(t *testing.T) {
	tests := []struct {
		suffix string
		want   bool
	}{
		{"mp4", true},
		{".mkv", true},
		{"WEBM", true},
		{".MPG", true},
		{"3gp", true},
		{"txt", false},
		{"iso", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := SuffixAllowed(tt.suffix); got != tt.want {
			t.Fatalf("SuffixAllowed(%q) = %v, want %v", tt.suffix, got, tt.want)
		}
	}
}

func TestParseStageStatus(t *testing.T) {
	if status, ok := ParseStageStatus(" Success "); !ok || status != StatusSuccess {
		t.Fatalf("ParseStageStatus = %q, %v", status, ok)
	}
	if _, ok := ParseStageStatus("done"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestMovieMergeTerm(t *testing.T) {
	movie := &Movie{}
	movie.MergeTerm(Term{Origin: "先輩", Recommended: "前辈"})
	movie.MergeTerm(Term{Origin: "先輩", Recommended: "学长"})
	movie.MergeTerm(Term{Origin: "  ", Recommended: "ignored"})
	if len(movie.Terms) != 1 {
		t.Fatalf("Terms = %+v", movie.Terms)
	}
	if movie.Terms[0].Recommended != "前辈" {
		t.Fatalf("Recommended = %q", movie.Terms[0].Recommended)
	}
}

func TestVideoStageOrderTerminal(t *testing.T) {
	if VideoStageOrder[len(VideoStageOrder)-1] != TerminalStage {
		t.Fatalf("terminal stage is %q", VideoStageOrder[len(VideoStageOrder)-1])
	}
	if IsVideoStage(StageScrape) {
		t.Fatal("scrape is not a video stage")
	}
}
