package frames

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// sceneThreshold is the ffmpeg scene-change score above which a frame is
// considered a cut.
const sceneThreshold = 0.3

// fallbackIntervalSeconds is the fixed sampling interval used when scene
// detection yields nothing usable.
const fallbackIntervalSeconds = 30

// candidate is one extracted frame image and its position in the video.
type candidate struct {
	Path    string
	Seconds float64
}

var ptsTimeRe = regexp.MustCompile(`pts_time:([0-9]+(?:\.[0-9]+)?)`)

// extractScenes runs ffmpeg scene-change detection, writing jpeg frames to
// dir and reading their timestamps from the showinfo filter output.
func extractScenes(ctx context.Context, videoPath, dir string) ([]candidate, error) {
	pattern := filepath.Join(dir, "scene_%04d.jpg")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-i", videoPath,
		"-vf", fmt.Sprintf("select='gt(scene,%g)',showinfo", sceneThreshold),
		"-vsync", "vfr",
		"-frame_pts", "1",
		pattern,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg scene detection failed: %w", err)
	}

	times := ptsTimeRe.FindAllStringSubmatch(string(out), -1)
	files, err := sortedFrameFiles(dir, "scene_")
	if err != nil {
		return nil, err
	}

	n := len(files)
	if len(times) < n {
		n = len(times)
	}
	candidates := make([]candidate, 0, n)
	for i := 0; i < n; i++ {
		secs, err := strconv.ParseFloat(times[i][1], 64)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{Path: files[i], Seconds: secs})
	}
	return candidates, nil
}

// extractInterval samples one frame every fallbackIntervalSeconds.
func extractInterval(ctx context.Context, videoPath, dir string) ([]candidate, error) {
	pattern := filepath.Join(dir, "interval_%04d.jpg")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%d", fallbackIntervalSeconds),
		pattern,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg interval sampling failed: %w (%s)", err, truncate(string(out), 300))
	}

	files, err := sortedFrameFiles(dir, "interval_")
	if err != nil {
		return nil, err
	}
	candidates := make([]candidate, 0, len(files))
	for i, f := range files {
		candidates = append(candidates, candidate{Path: f, Seconds: float64(i * fallbackIntervalSeconds)})
	}
	return candidates, nil
}

func sortedFrameFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && len(name) > len(prefix) && name[:len(prefix)] == prefix {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
