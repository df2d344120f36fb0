package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	ws "nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	"nhooyr.io/websocket/wsjson"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/platform"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Chat commands typed by the user.
const (
	cmdQuit  = "/quit"
	cmdReset = "/reset"
	cmdFile  = "/file"
	cmdVoice = "/voice"
)

var chatURL string

var (
	agentColor = color.New(color.FgCyan)
	infoColor  = color.New(color.FgHiBlack)
	errorColor = color.New(color.FgRed)
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with an agent on the WebSocket platform",
	Long: `Open a WebSocket connection to an agent and chat from the terminal.

Commands:
  /reset         start the conversation again
  /file <path>   send a file
  /voice <path>  send an audio clip for transcription
  /quit          leave

The URL defaults to ws://<websocket.host>:<websocket.port>.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		url := chatURL
		if url == "" {
			props, err := loadProperties()
			if err != nil {
				return err
			}
			url = "ws://" + net.JoinHostPort(props.String(config.WebSocketHost), strconv.Itoa(props.Int(config.WebSocketPort)))
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		conn, _, err := ws.Dial(dialCtx, url, nil) //nolint:staticcheck
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", url, err)
		}
		defer func() { _ = conn.Close(ws.StatusNormalClosure, "bye") }()
		infoColor.Fprintf(cmd.OutOrStdout(), "connected to %s, type %s to leave\n", url, cmdQuit)
		return chat(ctx, conn, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatURL, "url", "", "agent WebSocket URL")
	rootCmd.AddCommand(chatCmd)
}

// chat prints the agent payloads received on conn and sends the lines read
// from in until /quit, the end of in or a closed connection.
func chat(ctx context.Context, conn *ws.Conn, in io.Reader, out io.Writer) error { //nolint:staticcheck
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		for {
			var p platform.Payload
			if err := wsjson.Read(ctx, conn, &p); err != nil {
				readErr <- err
				cancel()
				return
			}
			render(out, p)
		}
	}()

	lines := bufio.NewScanner(in)
	for lines.Scan() {
		payload, quit, err := parseInput(lines.Text())
		if quit {
			return nil
		}
		if err != nil {
			errorColor.Fprintln(out, err)
			continue
		}
		if payload == nil {
			continue
		}
		if err := wsjson.Write(ctx, conn, payload); err != nil {
			break
		}
	}
	select {
	case err := <-readErr:
		if status := ws.CloseStatus(err); status == ws.StatusNormalClosure || status == ws.StatusGoingAway || errors.Is(err, context.Canceled) { //nolint:staticcheck
			return nil
		}
		return fmt.Errorf("connection lost: %w", err)
	default:
		return lines.Err()
	}
}

// parseInput turns a typed line into the payload to send. Blank lines give
// no payload.
func parseInput(line string) (*platform.Payload, bool, error) {
	line = strings.TrimSpace(line)
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "":
		return nil, false, nil
	case cmdQuit:
		return nil, true, nil
	case cmdReset:
		return &platform.Payload{Action: platform.Reset}, false, nil
	case cmdFile:
		if arg == "" {
			return nil, false, fmt.Errorf("usage: %s <path>", cmdFile)
		}
		f, err := types.NewFileFromPath(arg)
		if err != nil {
			return nil, false, err
		}
		return &platform.Payload{Action: platform.UserFile, Message: f}, false, nil
	case cmdVoice:
		if arg == "" {
			return nil, false, fmt.Errorf("usage: %s <path>", cmdVoice)
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		return &platform.Payload{Action: platform.UserVoice, Message: base64.StdEncoding.EncodeToString(data)}, false, nil
	}
	return &platform.Payload{Action: platform.UserMessage, Message: line}, false, nil
}

// render prints an agent payload.
func render(out io.Writer, p platform.Payload) {
	agentColor.Fprint(out, "agent> ")
	switch p.Action {
	case platform.AgentReplyStr, platform.AgentReplyMarkdown, platform.AgentReplyHTML:
		fmt.Fprintln(out, p.Text())
	case platform.AgentReplyOptions:
		var options []string
		if err := p.Into(&options); err != nil {
			errorColor.Fprintln(out, err)
			return
		}
		fmt.Fprintln(out, "choose one of:")
		for i, o := range options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, o)
		}
	case platform.AgentReplyLocation:
		var loc types.Location
		if err := p.Into(&loc); err != nil {
			errorColor.Fprintln(out, err)
			return
		}
		fmt.Fprintf(out, "location %.6f, %.6f\n", loc.Latitude, loc.Longitude)
	case platform.AgentReplyFile, platform.AgentReplyImage:
		f, err := p.File()
		if err != nil {
			errorColor.Fprintln(out, err)
			return
		}
		data, _ := f.Bytes()
		fmt.Fprintf(out, "%s %s (%s, %d bytes)\n", strings.TrimPrefix(string(p.Action), "agent_reply_"), f.Name, f.Type, len(data))
	case platform.AgentReplyDataFrame:
		var df types.DataFrame
		if err := p.Into(&df); err != nil {
			errorColor.Fprintln(out, err)
			return
		}
		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(df.Columns, "\t"))
		for _, row := range df.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprint(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		_ = tw.Flush()
	case platform.AgentReplyRAG:
		var answer types.RAGMessage
		if err := p.Into(&answer); err != nil {
			errorColor.Fprintln(out, err)
			return
		}
		fmt.Fprintln(out, answer.Answer)
		infoColor.Fprintf(out, "  (%d documents retrieved with %s)\n", len(answer.Docs), answer.LLMName)
	default:
		fmt.Fprintf(out, "[%s]\n", p.Action)
	}
}
