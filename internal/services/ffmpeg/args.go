package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SilentAudioArgs renders a mono silent MP3 of the given length.
func SilentAudioArgs(out string, length time.Duration) []string {
	return []string{
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", seconds(length),
		"-c:a", "libmp3lame",
		"-q:a", "9",
		out,
	}
}

// ConcatAudioArgs joins the files listed in a concat demuxer list without re-encoding.
func ConcatAudioArgs(listFile, out string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		out,
	}
}

// ConcatList renders a concat demuxer list for paths.
func ConcatList(paths []string) string {
	var b strings.Builder
	for _, path := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(path, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// Segment is one visual section of the render.
type Segment struct {
	Path     string
	Duration time.Duration
	// Still marks an image input that must be looped for Duration.
	Still bool
}

// RenderPlan describes the final composition.
type RenderPlan struct {
	Segments  []Segment
	Audio     string
	Subtitles string
	Output    string
	Width     int
	Height    int
	FPS       int
}

// RenderArgs builds the ffmpeg invocation for plan: each segment is scaled and
// padded to the frame, trimmed to its duration and concatenated; the narration
// is the audio track and the subtitles are muxed as a soft track.
func RenderArgs(plan RenderPlan) ([]string, error) {
	if len(plan.Segments) == 0 {
		return nil, fmt.Errorf("render plan has no segments")
	}
	if plan.Audio == "" || plan.Output == "" {
		return nil, fmt.Errorf("render plan requires audio and output paths")
	}
	if plan.Width <= 0 || plan.Height <= 0 || plan.FPS <= 0 {
		return nil, fmt.Errorf("render plan requires positive width, height and fps")
	}

	args := []string{"-y"}
	for _, seg := range plan.Segments {
		if seg.Still {
			args = append(args, "-loop", "1", "-t", seconds(seg.Duration), "-i", seg.Path)
		} else {
			args = append(args, "-stream_loop", "-1", "-t", seconds(seg.Duration), "-i", seg.Path)
		}
	}
	audioIndex := len(plan.Segments)
	args = append(args, "-i", plan.Audio)
	subtitleIndex := -1
	if plan.Subtitles != "" {
		subtitleIndex = audioIndex + 1
		args = append(args, "-i", plan.Subtitles)
	}

	var filter strings.Builder
	for i := range plan.Segments {
		fmt.Fprintf(&filter,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p[v%d];",
			i, plan.Width, plan.Height, plan.Width, plan.Height, plan.FPS, i)
	}
	for i := range plan.Segments {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[vout]", len(plan.Segments))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[vout]",
		"-map", strconv.Itoa(audioIndex)+":a",
	)
	if subtitleIndex >= 0 {
		args = append(args, "-map", strconv.Itoa(subtitleIndex)+":s", "-c:s", "mov_text")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		plan.Output,
	)
	return args, nil
}

func seconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
