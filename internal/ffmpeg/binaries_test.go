package ffmpeg

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

type fakeEnv map[string]string

func (e fakeEnv) get(k string) string { return e[k] }

func testResolver(t *testing.T, env fakeEnv, onPath map[string]string) (*Resolver, *int) {
	t.Helper()
	cache := t.TempDir()
	fetches := 0
	return &Resolver{
		Getenv: env.get,
		LookPath: func(name string) (string, error) {
			if p, ok := onPath[name]; ok {
				return p, nil
			}
			return "", exec.ErrNotFound
		},
		CacheDir: func() (string, error) { return cache, nil },
		Fetch: func(ctx context.Context, url string) (io.ReadCloser, error) {
			fetches++
			return io.NopCloser(bytes.NewReader(bundle(t, "ffmpeg-6.1/ffmpeg", "ffmpeg-6.1/ffprobe", "readme.txt"))), nil
		},
		GOOS:   "linux",
		GOARCH: "amd64",
	}, &fetches
}

// bundle builds an in-memory zip holding the named files.
func bundle(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte("binary " + n)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestResolveFromEnvAndPath(t *testing.T) {
	tests := []struct {
		name   string
		env    fakeEnv
		onPath map[string]string
		want   BinaryPaths
	}{
		{
			name: "env wins",
			env:  fakeEnv{EnvFFmpegPath: "/opt/ff/ffmpeg", EnvFFprobePath: "/opt/ff/ffprobe"},
			onPath: map[string]string{
				"ffmpeg": "/usr/bin/ffmpeg", "ffprobe": "/usr/bin/ffprobe",
			},
			want: BinaryPaths{FFmpeg: "/opt/ff/ffmpeg", FFprobe: "/opt/ff/ffprobe"},
		},
		{
			name:   "mixed",
			env:    fakeEnv{EnvFFmpegPath: "/opt/ff/ffmpeg"},
			onPath: map[string]string{"ffprobe": "/usr/bin/ffprobe"},
			want:   BinaryPaths{FFmpeg: "/opt/ff/ffmpeg", FFprobe: "/usr/bin/ffprobe"},
		},
		{
			name:   "path only",
			env:    fakeEnv{},
			onPath: map[string]string{"ffmpeg": "/usr/bin/ffmpeg", "ffprobe": "/usr/bin/ffprobe"},
			want:   BinaryPaths{FFmpeg: "/usr/bin/ffmpeg", FFprobe: "/usr/bin/ffprobe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, fetches := testResolver(t, tt.env, tt.onPath)
			got, err := r.Resolve(context.Background())
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve = %+v, want %+v", got, tt.want)
			}
			if *fetches != 0 {
				t.Errorf("nothing should be downloaded when binaries are known")
			}
		})
	}
}

func TestResolveDownloadsOnceThenUsesCache(t *testing.T) {
	r, fetches := testResolver(t, fakeEnv{}, map[string]string{"ffmpeg": "/usr/bin/ffmpeg"})

	got, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.FFmpeg != "/usr/bin/ffmpeg" {
		t.Errorf("binary on PATH should be kept, got %q", got.FFmpeg)
	}
	if filepath.Base(got.FFprobe) != "ffprobe" || !fileExists(got.FFprobe) {
		t.Errorf("ffprobe not extracted: %q", got.FFprobe)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(got.FFprobe)
		if err != nil || info.Mode().Perm()&0o100 == 0 {
			t.Errorf("extracted binary is not executable")
		}
	}

	if _, err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if *fetches != 1 {
		t.Errorf("bundle fetched %d times, want 1", *fetches)
	}
}

func TestResolveFailures(t *testing.T) {
	t.Run("download disabled", func(t *testing.T) {
		r, fetches := testResolver(t, fakeEnv{EnvNoDownload: "1"}, nil)
		if _, err := r.Resolve(context.Background()); err == nil || !strings.Contains(err.Error(), EnvFFmpegPath) {
			t.Errorf("expected a hint about %s, got %v", EnvFFmpegPath, err)
		}
		if *fetches != 0 {
			t.Errorf("download attempted although disabled")
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		r, _ := testResolver(t, fakeEnv{}, nil)
		r.GOOS, r.GOARCH = "plan9", "386"
		if _, err := r.Resolve(context.Background()); err == nil || !strings.Contains(err.Error(), "plan9/386") {
			t.Errorf("expected unsupported platform error, got %v", err)
		}
	})

	t.Run("incomplete bundle", func(t *testing.T) {
		r, _ := testResolver(t, fakeEnv{}, nil)
		r.Fetch = func(ctx context.Context, url string) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bundle(t, "ffmpeg"))), nil
		}
		if _, err := r.Resolve(context.Background()); err == nil || !strings.Contains(err.Error(), "missing required binaries") {
			t.Errorf("expected missing binaries error, got %v", err)
		}
	})

	t.Run("fetch error", func(t *testing.T) {
		r, _ := testResolver(t, fakeEnv{}, nil)
		r.Fetch = func(ctx context.Context, url string) (io.ReadCloser, error) {
			return nil, errors.New("offline")
		}
		if _, err := r.Resolve(context.Background()); err == nil || !strings.Contains(err.Error(), "offline") {
			t.Errorf("expected fetch error, got %v", err)
		}
	})
}

func TestAssetForPlatform(t *testing.T) {
	tests := []struct {
		goos, goarch, want string
	}{
		{"linux", "amd64", "ffmpeg-6.1-linux-64.zip"},
		{"linux", "arm64", "ffmpeg-6.1-linux-arm-64.zip"},
		{"darwin", "amd64", "ffmpeg-6.1-macos-64.zip"},
		{"windows", "amd64", "ffmpeg-6.1-win-64.zip"},
	}
	for _, tt := range tests {
		got, err := assetForPlatform(tt.goos, tt.goarch)
		if err != nil || got != tt.want {
			t.Errorf("assetForPlatform(%s, %s) = %q, %v", tt.goos, tt.goarch, got, err)
		}
	}
}

func TestRunWithCapturesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a stand-in for ffmpeg")
	}
	dir := t.TempDir()

	ok := filepath.Join(dir, "ok.sh")
	script := "#!/bin/sh\necho \"[silencedetect] silence_start: 1.5\" >&2\n"
	if err := os.WriteFile(ok, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	fail := filepath.Join(dir, "fail.sh")
	if err := os.WriteFile(fail, []byte("#!/bin/sh\necho 'No such file' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	stream := ffmpeggo.Input("in.wav").Output("-", ffmpeggo.KwArgs{"f": "null"})

	stderr, err := RunWith(context.Background(), ok, stream)
	if err != nil {
		t.Fatalf("RunWith: %v", err)
	}
	if !strings.Contains(stderr, "silence_start: 1.5") {
		t.Errorf("stderr = %q", stderr)
	}

	_, err = RunWith(context.Background(), fail, stream)
	if err == nil || !strings.Contains(err.Error(), "No such file") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}
