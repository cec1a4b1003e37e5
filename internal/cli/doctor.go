package cli

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"go.aimuz.me/voxmemo/audiocapture"
	"go.aimuz.me/voxmemo/hotkey"
	"go.aimuz.me/voxmemo/internal/output"
	"go.aimuz.me/voxmemo/playback"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Stdout)
			cfg := deps.Config
			ok := true

			ffmpeg := cfg.FFmpegPath
			if ffmpeg == "" {
				ffmpeg = "ffmpeg"
			}
			if path, err := exec.LookPath(ffmpeg); err != nil {
				f.SetupCheck("ffmpeg", false, "not found. Install with: brew install ffmpeg (or your package manager)")
				ok = false
			} else {
				f.SetupCheck("ffmpeg", true, path)
			}

			if path, err := (playback.ExecOutput{Path: cfg.PlayerPath}).LookPath(); err != nil {
				f.SetupCheck("ffplay", false, "not found. It ships with ffmpeg")
				ok = false
			} else {
				f.SetupCheck("ffplay", true, path)
			}

			format, device, err := audiocapture.DefaultInput(runtime.GOOS)
			if cfg.InputFormat != "" {
				format = cfg.InputFormat
			}
			if cfg.InputDevice != "" {
				device, err = cfg.InputDevice, nil
			}
			if err != nil {
				f.SetupCheck("Input device", false, "not set. Set VOXMEMO_INPUT_DEVICE or input_device in the config")
				ok = false
			} else {
				f.SetupCheck("Input device", true, fmt.Sprintf("%s %s", format, device))
			}

			if err := checkWritable(cfg.RecordingsDir); err != nil {
				f.SetupCheck("Recordings directory", false, err.Error())
				ok = false
			} else {
				f.SetupCheck("Recordings directory", true, cfg.RecordingsDir)
			}

			if cfg.Hotkeys.Enabled {
				_, terr := hotkey.ParseCombo(cfg.Hotkeys.Toggle)
				_, perr := hotkey.ParseCombo(cfg.Hotkeys.Play)
				if terr != nil || perr != nil {
					f.SetupCheck("Hotkeys", false, "invalid combo in config")
					ok = false
				} else {
					f.SetupCheck("Hotkeys", true, cfg.Hotkeys.Toggle+", "+cfg.Hotkeys.Play)
				}
			}

			if cfg.Path() != "" {
				f.SetupCheck("Config", true, cfg.Path())
			}

			if ok {
				f.Success("\nAll prerequisites met. Ready to record!")
			} else {
				f.Warning("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".voxmemo-doctor-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
