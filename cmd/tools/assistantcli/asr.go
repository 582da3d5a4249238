package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/educhain/assistant/backend/internal/app"
	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
	speechsvc "github.com/educhain/assistant/backend/internal/service/speech"
)

var errSpeechDisabled = errors.New("speech is not configured: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")

func newASRCmd(opts *options) *cobra.Command {
	var (
		audioPath string
		format    string
		stream    bool
	)

	cmd := &cobra.Command{
		Use:   "asr",
		Short: "Transcribe an audio file",
		Long: `Sends an audio file to the recognizer and prints the transcript.
With --stream the file is treated as 16 kHz mono PCM and every interim result is printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.cfg.Speech.Enabled {
				return errSpeechDisabled
			}

			file, err := os.Open(audioPath)
			if err != nil {
				return err
			}
			defer file.Close()

			svc := speechsvc.NewService(app.SpeechConfig(opts.cfg.Speech))
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if stream {
				events := make(chan speechmodel.RecognitionEvent, 8)
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return svc.Recognizer().Recognize(gctx, file, events)
				})
				g.Go(func() error {
					for event := range events {
						label := "partial"
						if event.Final() {
							label = "final"
						}
						fmt.Fprintf(out, "%s: %s\n", label, event.Transcript())
					}
					return nil
				})
				return g.Wait()
			}

			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
			}
			resp, err := svc.Recognizer().Transcribe(ctx, &speechmodel.ASRRequest{
				SessionID: "cli",
				AudioData: file,
				Format:    format,
				Language:  opts.cfg.Speech.ASRLanguage,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, resp.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&audioPath, "audio", "a", "", "audio file to transcribe")
	cmd.Flags().StringVar(&format, "format", "", "audio format (default from extension)")
	cmd.Flags().BoolVar(&stream, "stream", false, "print interim results")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}
