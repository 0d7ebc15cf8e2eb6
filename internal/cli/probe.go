package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"signconnect/tutor/internal/types"
)

type probeOptions struct {
	baseURL string
	text    string
	sign    string
	frames  int
	timeout time.Duration
}

func newProbeCmd() *cobra.Command {
	var o probeOptions
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Drive a scripted session against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			return runProbe(ctx, o)
		},
	}
	cmd.Flags().StringVar(&o.baseURL, "url", "http://localhost:8000", "server base URL")
	cmd.Flags().StringVar(&o.text, "text", "teach me A", "final transcript to send")
	cmd.Flags().StringVar(&o.sign, "sign", "A", "label to send in hand_state frames")
	cmd.Flags().IntVar(&o.frames, "frames", 12, "number of hand_state frames")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "overall probe timeout")
	return cmd
}

func runProbe(ctx context.Context, o probeOptions) error {
	wsPath, err := createSession(ctx, o.baseURL)
	if err != nil {
		return err
	}
	wsURL := "ws" + strings.TrimPrefix(strings.TrimSuffix(o.baseURL, "/"), "http") + wsPath
	fmt.Printf("=== Tutor probe ===\nConnecting: %s\n\n", wsURL)

	c, _, err := ws.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close(ws.StatusNormalClosure, "probe done")

	go func() {
		for {
			var msg types.Outbound
			if err := wsjson.Read(ctx, c, &msg); err != nil {
				if ctx.Err() == nil {
					fmt.Printf("[stream] read: %v\n", err)
				}
				return
			}
			printOutbound(msg)
		}
	}()

	time.Sleep(500 * time.Millisecond)
	fmt.Printf("[1] Sending transcript: %q\n", o.text)
	if err := wsjson.Write(ctx, c, types.TranscriptMessage{Type: types.InTranscript, Text: o.text, IsFinal: true}); err != nil {
		return fmt.Errorf("send transcript: %w", err)
	}

	time.Sleep(2 * time.Second)
	fmt.Printf("[2] Sending %d hand_state frames labelled %q\n", o.frames, o.sign)
	for i := 0; i < o.frames; i++ {
		frame := types.HandStateMessage{Type: types.InHandState, Data: types.HandFrame{
			Label: o.sign, Confidence: 0.95, Timestamp: types.NowMs(),
		}}
		if err := wsjson.Write(ctx, c, frame); err != nil {
			return fmt.Errorf("send hand_state: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("\n[*] Waiting for responses (ctrl+c or timeout to exit)")
	<-ctx.Done()
	return nil
}

// createSession asks the server for a session so the probe works with auth on.
func createSession(ctx context.Context, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(baseURL, "/")+"/sessions", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: status %d", resp.StatusCode)
	}
	var body struct {
		WSPath string `json:"ws_path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	return body.WSPath, nil
}

func printOutbound(m types.Outbound) {
	ts := time.Now().Format("15:04:05.000")
	switch m.Type {
	case types.OutAgentText:
		fmt.Printf("[%s] <- say: %q\n", ts, m.Text)
	case types.OutAudioChunk:
		fmt.Printf("[%s] <- audio chunk (%d b64 bytes)\n", ts, len(m.Data))
	case types.OutStopPlayback:
		fmt.Printf("[%s] <- stop_playback: %s\n", ts, m.Code)
	case types.OutASRPartial, types.OutASRFinal:
		fmt.Printf("[%s] <- %s: %q\n", ts, m.Type, m.Text)
	case types.OutError:
		fmt.Printf("[%s] <- error %s: %s\n", ts, m.Code, m.Message)
	case types.OutUIState:
		if m.UIState != nil {
			fmt.Printf("[%s] <- ui_state mode=%s target=%s seen=%s(%.2f) progress=%d streak=%d\n",
				ts, m.Mode, m.TargetSign, m.Prediction, m.Confidence, m.TeachingProgress, m.Streak)
		}
	default:
		fmt.Printf("[%s] <- %s\n", ts, m.Type)
	}
}
