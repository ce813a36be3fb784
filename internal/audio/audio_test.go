package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		name        string
		total, size time.Duration
		wantOffsets []time.Duration
		wantLast    time.Duration
	}{
		{"exact", 30 * time.Second, 10 * time.Second, []time.Duration{0, 10 * time.Second, 20 * time.Second}, 10 * time.Second},
		{"remainder", 25 * time.Second, 10 * time.Second, []time.Duration{0, 10 * time.Second, 20 * time.Second}, 5 * time.Second},
		{"short", 3 * time.Second, time.Minute, []time.Duration{0}, 3 * time.Second},
		{"empty", 0, time.Minute, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := PlanChunks(tt.total, tt.size)
			if err != nil {
				t.Fatalf("PlanChunks: %v", err)
			}
			if len(chunks) != len(tt.wantOffsets) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.wantOffsets))
			}
			var covered time.Duration
			for i, c := range chunks {
				if c.Index != i || c.Offset != tt.wantOffsets[i] {
					t.Errorf("chunk %d = %+v", i, c)
				}
				covered += c.Length
			}
			if covered != tt.total {
				t.Errorf("chunks cover %v, want %v", covered, tt.total)
			}
			if len(chunks) > 0 && chunks[len(chunks)-1].Length != tt.wantLast {
				t.Errorf("last chunk length %v, want %v", chunks[len(chunks)-1].Length, tt.wantLast)
			}
		})
	}

	if _, err := PlanChunks(time.Minute, 0); err == nil {
		t.Errorf("zero chunk size should be rejected")
	}
}

func TestEncodeArgs(t *testing.T) {
	tests := []struct {
		opts       CompressionOptions
		wantCodec  string
		wantBitrat bool
	}{
		{DefaultCompressionOptions(), "libmp3lame", true},
		{CompressionOptions{Format: "aac", Bitrate: "128k"}, "aac", true},
		{CompressionOptions{Format: "wav", Bitrate: "128k", SampleRate: 48000, Channels: 2}, "pcm_s16le", false},
		{CompressionOptions{Format: "flac", Bitrate: "128k"}, "flac", false},
	}

	for _, tt := range tests {
		t.Run(tt.opts.Format, func(t *testing.T) {
			args := EncodeArgs(tt.opts)
			if args["acodec"] != tt.wantCodec {
				t.Errorf("acodec = %v, want %s", args["acodec"], tt.wantCodec)
			}
			if _, ok := args["b:a"]; ok != tt.wantBitrat {
				t.Errorf("bitrate present = %v, want %v", ok, tt.wantBitrat)
			}
			if _, ok := args["vn"]; !ok {
				t.Errorf("video should be disabled")
			}
		})
	}
}

func TestCompressStreamArgs(t *testing.T) {
	stream := ffmpeg.Input("in.mov").Output("out.mp3", EncodeArgs(DefaultCompressionOptions())).OverWriteOutput()
	args := stream.GetArgs()

	want := map[string]string{"-ar": "16000", "-ac": "1", "-acodec": "libmp3lame", "-b:a": "64k"}
	for i := 0; i < len(args)-1; i++ {
		if v, ok := want[args[i]]; ok {
			if args[i+1] != v {
				t.Errorf("%s = %s, want %s", args[i], args[i+1], v)
			}
			delete(want, args[i])
		}
	}
	if len(want) > 0 {
		t.Errorf("missing arguments %v in %v", want, args)
	}
}

func TestMediaFileDetection(t *testing.T) {
	tests := []struct {
		path         string
		video, audio bool
	}{
		{"clip.MP4", true, false},
		{"talk.mov", true, false},
		{"voice.wav", false, true},
		{"podcast.M4A", false, true},
		{"notes.txt", false, false},
	}
	for _, tt := range tests {
		if IsVideoFile(tt.path) != tt.video || IsAudioFile(tt.path) != tt.audio {
			t.Errorf("%s: video=%v audio=%v", tt.path, IsVideoFile(tt.path), IsAudioFile(tt.path))
		}
		if IsMediaFile(tt.path) != (tt.video || tt.audio) {
			t.Errorf("%s: IsMediaFile mismatch", tt.path)
		}
	}
}

func TestCleanupChunks(t *testing.T) {
	dir := t.TempDir()
	var chunks []ChunkInfo
	for i := 0; i < 3; i++ {
		p := filepath.Join(dir, filepath.Base(t.Name())+string(rune('a'+i)))
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		chunks = append(chunks, ChunkInfo{Path: p, Index: i})
	}
	chunks = append(chunks, ChunkInfo{Path: filepath.Join(dir, "missing")})

	if err := CleanupChunks(chunks); err != nil {
		t.Fatalf("CleanupChunks: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("%d files left behind", len(entries))
	}
}
