package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// External tool timeouts. Encoding jobs get the long bound, duration
// probes the short one.
const (
	ffmpegTimeout = 600 * time.Second
	probeTimeout  = 30 * time.Second

	crossfadeSeconds = 2.0
	musicTailSeconds = 6.0
	voiceGain        = 1.5
)

// ToolError preserves the failing tool's stderr alongside the exit error.
type ToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %v\n%s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

func runTool(ctx context.Context, timeout time.Duration, tool string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, tool, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &ToolError{Tool: tool, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.String(), nil
}

// Concat stitches segment files into output without re-encoding. All
// segments must share a codec for stream copy to be valid.
func Concat(ctx context.Context, segments []string, listPath, output string) error {
	if len(segments) == 0 {
		return fmt.Errorf("no audio segments to concatenate")
	}

	var lines []string
	for _, seg := range segments {
		abs, err := filepath.Abs(seg)
		if err != nil {
			return fmt.Errorf("resolve segment path: %w", err)
		}
		lines = append(lines, fmt.Sprintf("file '%s'", abs))
	}
	if err := os.WriteFile(listPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	_, err := runTool(ctx, ffmpegTimeout, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		output,
	)
	if err != nil {
		return err
	}
	return verifyOutput(output)
}

// ProbeDuration returns the duration of an audio file in seconds.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := runTool(ctx, probeTimeout, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration for %s: %w", path, err)
	}
	return dur, nil
}

// ResolveBackgroundMusic picks the per-app bg-music.* override (first
// match in sorted order) or falls back to assets/default-bg-music.wav.
// A run with TTS enabled cannot proceed without music.
func ResolveBackgroundMusic(baseDir, app string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(baseDir, "apps", app, "assets", "bg-music.*"))
	if err != nil {
		return "", fmt.Errorf("glob app music assets: %w", err)
	}
	if len(matches) > 0 {
		sort.Strings(matches)
		return matches[0], nil
	}

	fallback := filepath.Join(baseDir, "assets", "default-bg-music.wav")
	if _, err := os.Stat(fallback); err != nil {
		return "", fmt.Errorf("no background music: no apps/%s/assets/bg-music.* and no %s", app, fallback)
	}
	return fallback, nil
}

// LoopBackground extends source to voiceDur+6s. Sources at or under the
// crossfade width cannot be crossfaded, so they are stream-looped and
// trimmed; longer sources are chained with 2-second equal-power
// crossfades, which keeps the loop seam inaudible.
func LoopBackground(ctx context.Context, source string, srcDur, voiceDur float64, output string) error {
	target := voiceDur + musicTailSeconds
	trim := fmt.Sprintf("%.3f", target)

	if srcDur <= crossfadeSeconds {
		_, err := runTool(ctx, ffmpegTimeout, "ffmpeg",
			"-stream_loop", "-1",
			"-i", source,
			"-t", trim,
			"-y",
			output,
		)
		if err != nil {
			return err
		}
		return verifyOutput(output)
	}

	// Each crossfaded join loses one crossfade width of total length.
	n := int(math.Ceil((target - crossfadeSeconds) / (srcDur - crossfadeSeconds)))
	if n < 1 {
		n = 1
	}

	args := []string{}
	for i := 0; i < n; i++ {
		args = append(args, "-i", source)
	}

	var filter strings.Builder
	prev := "[0:a]"
	for i := 1; i < n; i++ {
		out := fmt.Sprintf("[x%d]", i)
		fmt.Fprintf(&filter, "%s[%d:a]acrossfade=d=%g:c1=qsin:c2=qsin%s;", prev, i, crossfadeSeconds, out)
		prev = out
	}
	fmt.Fprintf(&filter, "%satrim=0:%s[out]", prev, trim)

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[out]",
		"-y",
		output,
	)
	if _, err := runTool(ctx, ffmpegTimeout, "ffmpeg", args...); err != nil {
		return err
	}
	return verifyOutput(output)
}

// envelopeExpr builds the piecewise volume curve for the background
// track: near full during the 1.5s intro, ducked to 0.10 under the
// voice, swelling to 0.70 over the 2s outro.
func envelopeExpr(voiceDur float64) string {
	v := fmt.Sprintf("%.3f", voiceDur)
	return "volume=" +
		"'if(lt(t,1.5),0.75," +
		"if(lt(t,3),0.75+(0.10-0.75)*(t-1.5)/1.5," +
		"if(lt(t," + v + "),0.10," +
		"if(lt(t," + v + "+2),0.10+(0.70-0.10)*(t-" + v + ")/2," +
		"0.70))))'" +
		":eval=frame"
}

// ApplyEnvelope writes a copy of the looped background with the ducking
// envelope applied.
func ApplyEnvelope(ctx context.Context, background string, voiceDur float64, output string) error {
	_, err := runTool(ctx, ffmpegTimeout, "ffmpeg",
		"-i", background,
		"-af", envelopeExpr(voiceDur),
		"-y",
		output,
	)
	if err != nil {
		return err
	}
	return verifyOutput(output)
}

// Mix combines the voiceover (boosted 1.5x) with the enveloped
// background, keeping the voiceover's duration. The output codec follows
// the extension: .wav is PCM s16le, anything else is MP3 VBR.
func Mix(ctx context.Context, voiceover, background, output string) error {
	filter := fmt.Sprintf(
		"[0:a]volume=%g[v];[v][1:a]amix=inputs=2:duration=first:dropout_transition=0[out]",
		voiceGain,
	)
	args := []string{
		"-i", voiceover,
		"-i", background,
		"-filter_complex", filter,
		"-map", "[out]",
	}
	if strings.EqualFold(filepath.Ext(output), ".wav") {
		args = append(args, "-c:a", "pcm_s16le")
	} else {
		args = append(args, "-c:a", "libmp3lame", "-q:a", "2")
	}
	args = append(args, "-y", output)

	if _, err := runTool(ctx, ffmpegTimeout, "ffmpeg", args...); err != nil {
		return err
	}
	return verifyOutput(output)
}

func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file %s is empty", path)
	}
	return nil
}
