package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/educhain/assistant/backend/internal/app"
	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
	speechsvc "github.com/educhain/assistant/backend/internal/service/speech"
)

func newTTSCmd(opts *options) *cobra.Command {
	var (
		text   string
		voice  string
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "tts",
		Short: "Synthesize text to an audio file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.cfg.Speech.Enabled {
				return errSpeechDisabled
			}

			svc := speechsvc.NewService(app.SpeechConfig(opts.cfg.Speech))
			resp, err := svc.SynthesizeSpeech(cmd.Context(), &speechmodel.TTSRequest{
				SessionID: "cli",
				Text:      text,
				Voice:     voice,
				Format:    format,
				Language:  opts.cfg.Speech.TTSLanguage,
			})
			if err != nil {
				return err
			}

			if out == "" {
				out = "speech." + resp.Format
			}
			if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(resp.AudioData), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "text to speak")
	cmd.Flags().StringVar(&voice, "voice", "", "voice id (default from config)")
	cmd.Flags().StringVar(&format, "format", "mp3", "output format: mp3 or wav")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default speech.<format>)")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
