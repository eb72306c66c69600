package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dgnsrekt/chime/internal/config"
	"github.com/dgnsrekt/chime/internal/engine"
	"github.com/dgnsrekt/chime/internal/platform"
	"github.com/dgnsrekt/chime/pkg/bridge"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	doctorProbe bool

	doctorCmd = &cobra.Command{
		Use:     "doctor",
		Short:   "Report on audio output and configuration",
		Long:    paragraph(fmt.Sprintf("\n%s what chime sees on this machine: the audio system, whether a device is present and the effective settings.", keyword("Report"))),
		Example: paragraph("chime doctor\nchime doctor --probe"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			writeDoctorReport(out, platform.Detect(), cfg, configFile)

			if !doctorProbe {
				return nil
			}
			stack, err := newAudioStack(cfg, nil)
			if err != nil {
				fmt.Fprintf(out, "\n%s %v\n", warning("Probe failed:"), err)
				return err
			}
			backend := "device"
			if platform.IsMock(stack.device) {
				backend = "mock"
			}
			fmt.Fprintf(out, "\n%s audio started on the %s backend\n", keyword("Probe ok:"), backend)
			return stack.Close()
		},
	}
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorProbe, "probe", false, "open and close the audio device")
}

func writeDoctorReport(out io.Writer, info *platform.Info, c config.Config, path string) {
	row := func(k string, v any) {
		fmt.Fprintf(out, "  %-14s %v\n", k+":", v)
	}

	fmt.Fprintln(out, keyword("Platform"))
	row("os", info.OS)
	row("audio", info.Audio)
	row("device", info.HasAudioDevice)
	row("ci", info.IsCI)
	if info.ShouldUseMock() {
		row("auto backend", warning("mock ("+info.MockReason()+")"))
	} else {
		row("auto backend", "oto")
	}
	keys := make([]string, 0, len(info.Details))
	for k := range info.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row(k, faint(info.Details[k]))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, keyword("Settings"))
	row("config", path)
	row("backend", c.Audio.Backend)
	row("sample rate", humanize.SI(float64(c.Audio.SampleRate), "Hz"))
	row("channels", c.Audio.Channels)
	if peak, err := bridge.EffectiveVolume(engine.MaxVolume, c.Volume); err == nil {
		row("volume", fmt.Sprintf("%.2f (peak %.0f of %d)", c.Volume, peak, engine.MaxVolume))
	}
	row("settle delay", c.SettleDelay)
	row("cache ttl", c.Cache.TTL)
	row("formats", strings.Join(engine.SupportedExtensions(), " "))
}
