package ffmpeg

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	releaseVersion = "6.1"
	releaseBaseURL = "https://github.com/ffbinaries/ffbinaries-prebuilt/releases/download"

	EnvFFmpegPath  = "CUTLINE_FFMPEG_PATH"
	EnvFFprobePath = "CUTLINE_FFPROBE_PATH"
	// set to any value to forbid downloading a bundle
	EnvNoDownload = "CUTLINE_FFMPEG_NO_DOWNLOAD"
)

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

// Resolver finds ffmpeg and ffprobe: explicit env paths first, then PATH,
// then a cached download of the static build for the current platform.
type Resolver struct {
	Getenv   func(string) string
	LookPath func(string) (string, error)
	CacheDir func() (string, error)
	Fetch    func(ctx context.Context, url string) (io.ReadCloser, error)
	GOOS     string
	GOARCH   string
}

func DefaultResolver() *Resolver {
	return &Resolver{
		Getenv:   os.Getenv,
		LookPath: exec.LookPath,
		CacheDir: os.UserCacheDir,
		Fetch:    httpFetch,
		GOOS:     runtime.GOOS,
		GOARCH:   runtime.GOARCH,
	}
}

var (
	ensureOnce sync.Once
	ensureErr  error
	ensurePath BinaryPaths
)

// Ensure resolves the binaries once per process.
func Ensure() (BinaryPaths, error) {
	ensureOnce.Do(func() {
		ensurePath, ensureErr = DefaultResolver().Resolve(context.Background())
	})
	return ensurePath, ensureErr
}

func FFmpegPath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFmpeg, nil
}

func FFprobePath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFprobe, nil
}

func (r *Resolver) Resolve(ctx context.Context) (BinaryPaths, error) {
	paths := BinaryPaths{
		FFmpeg:  r.Getenv(EnvFFmpegPath),
		FFprobe: r.Getenv(EnvFFprobePath),
	}
	if paths.FFmpeg == "" {
		if found, err := r.LookPath("ffmpeg"); err == nil {
			paths.FFmpeg = found
		}
	}
	if paths.FFprobe == "" {
		if found, err := r.LookPath("ffprobe"); err == nil {
			paths.FFprobe = found
		}
	}
	if paths.FFmpeg != "" && paths.FFprobe != "" {
		return paths, nil
	}

	installDir, err := r.installDir()
	if err != nil {
		return BinaryPaths{}, err
	}
	cached := BinaryPaths{
		FFmpeg:  filepath.Join(installDir, "ffmpeg"+r.exeSuffix()),
		FFprobe: filepath.Join(installDir, "ffprobe"+r.exeSuffix()),
	}
	if binariesExist(cached) {
		return fill(paths, cached), nil
	}

	if r.Getenv(EnvNoDownload) != "" {
		return BinaryPaths{}, fmt.Errorf("ffmpeg and ffprobe not found: set %s and %s or install them on PATH", EnvFFmpegPath, EnvFFprobePath)
	}

	asset, err := assetForPlatform(r.GOOS, r.GOARCH)
	if err != nil {
		return BinaryPaths{}, err
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return BinaryPaths{}, fmt.Errorf("failed to create ffmpeg cache dir: %w", err)
	}

	url := fmt.Sprintf("%s/v%s/%s", releaseBaseURL, releaseVersion, asset)
	body, err := r.Fetch(ctx, url)
	if err != nil {
		return BinaryPaths{}, fmt.Errorf("failed to download ffmpeg bundle: %w", err)
	}
	defer func() { _ = body.Close() }()

	if err := extractBundle(body, installDir, r.exeSuffix()); err != nil {
		return BinaryPaths{}, fmt.Errorf("failed to extract %s: %w", asset, err)
	}
	if !binariesExist(cached) {
		return BinaryPaths{}, errors.New("ffmpeg binaries not found after extraction")
	}
	if r.GOOS != "windows" {
		for _, p := range []string{cached.FFmpeg, cached.FFprobe} {
			if err := os.Chmod(p, 0o755); err != nil {
				return BinaryPaths{}, fmt.Errorf("failed to chmod %s: %w", filepath.Base(p), err)
			}
		}
	}
	return fill(paths, cached), nil
}

// fill keeps binaries found on PATH and takes the rest from the cache.
func fill(found, cached BinaryPaths) BinaryPaths {
	if found.FFmpeg == "" {
		found.FFmpeg = cached.FFmpeg
	}
	if found.FFprobe == "" {
		found.FFprobe = cached.FFprobe
	}
	return found
}

func (r *Resolver) installDir() (string, error) {
	cacheDir, err := r.CacheDir()
	if err != nil || cacheDir == "" {
		cacheDir = os.TempDir()
	}
	return filepath.Join(cacheDir, "cutline", "ffmpeg", releaseVersion, r.GOOS, r.GOARCH), nil
}

func (r *Resolver) exeSuffix() string {
	if r.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

func assetForPlatform(goos, goarch string) (string, error) {
	var platform string
	switch {
	case goos == "linux" && goarch == "amd64":
		platform = "linux-64"
	case goos == "linux" && goarch == "arm64":
		platform = "linux-arm-64"
	case goos == "darwin" && goarch == "amd64":
		platform = "macos-64"
	case goos == "windows" && goarch == "amd64":
		platform = "win-64"
	default:
		return "", fmt.Errorf("unsupported platform for bundled ffmpeg: %s/%s", goos, goarch)
	}
	return "ffmpeg-" + releaseVersion + "-" + platform + ".zip", nil
}

func httpFetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// extractBundle spools the zip to disk (zip needs random access) and pulls
// out the two binaries wherever they sit in the archive.
func extractBundle(r io.Reader, installDir, suffix string) error {
	tmp, err := os.CreateTemp("", "cutline-ffmpeg-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	archivePath := tmp.Name()
	defer func() { _ = os.Remove(archivePath) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	found := map[string]bool{}
	for _, f := range zr.File {
		name := binaryName(filepath.Base(f.Name))
		if name == "" || found[name] {
			continue
		}
		if err := extractZipFile(f, filepath.Join(installDir, name+suffix)); err != nil {
			return err
		}
		found[name] = true
	}
	if !found["ffmpeg"] || !found["ffprobe"] {
		return errors.New("ffmpeg archive missing required binaries")
	}
	return nil
}

func binaryName(base string) string {
	switch strings.TrimSuffix(strings.ToLower(base), ".exe") {
	case "ffmpeg":
		return "ffmpeg"
	case "ffprobe":
		return "ffprobe"
	}
	return ""
}

func extractZipFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

func binariesExist(p BinaryPaths) bool {
	return fileExists(p.FFmpeg) && fileExists(p.FFprobe)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
