package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/educhain/assistant/backend/internal/app"
	"github.com/educhain/assistant/backend/internal/model/chat"
	speechmodel "github.com/educhain/assistant/backend/internal/model/speech"
	"github.com/educhain/assistant/backend/internal/service/assistant"
	speechsvc "github.com/educhain/assistant/backend/internal/service/speech"
)

func newChatCmd(opts *options) *cobra.Command {
	var (
		profileID string
		audioDir  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant line by line",
		Long: `Starts a session and sends every input line to the assistant.
/clear resets the conversation, /quit leaves.
With --audio-dir each spoken reply is saved there as an audio file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := app.New(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.Chat.CreateSession(ctx, profileID)
			if err != nil {
				return fmt.Errorf("creating session: %w", err)
			}
			widget, err := a.Assistants.Widget(ctx, session.ID)
			if err != nil {
				return err
			}

			if audioDir != "" {
				if a.Speech == nil {
					return errors.New("--audio-dir needs SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
				}
				if err := os.MkdirAll(audioDir, 0o755); err != nil {
					return err
				}
				p := widget.Profile()
				widget.SetSynthesizer(a.Speech.NewSpeaker(fileSink(audioDir), p.VoiceID, p.Language))
				widget.SetSpeechEnabled(true)
			} else {
				widget.SetSpeechEnabled(false)
			}

			return runChat(ctx, widget, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&profileID, "profile", "", "profile id (default educhain)")
	cmd.Flags().StringVar(&audioDir, "audio-dir", "", "save spoken replies into this directory")
	return cmd
}

func runChat(ctx context.Context, widget *assistant.Widget, in io.Reader, out io.Writer) error {
	defer widget.WaitPlayback()

	for _, turn := range widget.Messages() {
		printTurn(out, turn)
	}

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			for _, turn := range widget.Clear() {
				printTurn(out, turn)
			}
		default:
			res, err := widget.SubmitText(ctx, line)
			switch {
			case errors.Is(err, assistant.ErrEmptyDraft):
			case err != nil:
				return err
			default:
				printTurn(out, res.Reply)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func printTurn(out io.Writer, turn chat.Turn) {
	fmt.Fprintf(out, "%s: %s\n", turn.Role, turn.Content)
}

// fileSink writes every synthesized reply to dir as reply-N.<format>.
func fileSink(dir string) speechsvc.AudioSink {
	var n atomic.Int64
	return speechsvc.AudioSinkFunc(func(_ context.Context, audio *speechmodel.TTSResponse) error {
		format := audio.Format
		if format == "" {
			format = "mp3"
		}
		name := filepath.Join(dir, fmt.Sprintf("reply-%d.%s", n.Add(1), format))
		return os.WriteFile(name, audio.AudioData, 0o644)
	})
}
