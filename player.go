package main

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/mirrelia/pointsbot/handlers"
)

// vlcPlayer shells out to the VLC CLI for audio playback. VLC handles both
// local .wav clips and remote speech URLs, and its scaletempo_pitch filter
// provides the per-user pitch shift.
type vlcPlayer struct{}

func (p *vlcPlayer) Play(ctx context.Context, source string, opts handlers.PlayOptions) error {
	args := []string{"--intf", "dummy", "--play-and-exit", "--no-video"}
	if opts.Rate != "" {
		args = append(args, "--rate", opts.Rate)
	}
	if opts.PitchShift != 0 {
		args = append(args, "--audio-filter", "scaletempo_pitch",
			"--pitch-shift", fmt.Sprintf("%.2f", opts.PitchShift))
	}
	if opts.Output != "" && opts.Output != "default" {
		args = append(args, "--aout", "alsa", "--alsa-audio-device", opts.Output)
	}
	args = append(args, source)

	cmd := exec.CommandContext(ctx, "vlc", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("vlc playback of %s: %w (%s)", source, err, out)
	}
	return nil
}

// systemOpener hands an image URL to the desktop's default viewer.
type systemOpener struct{}

func (o *systemOpener) Open(ctx context.Context, url, title string) error {
	if err := exec.CommandContext(ctx, "xdg-open", url).Run(); err != nil {
		return fmt.Errorf("open %q: %w", title, err)
	}
	return nil
}
