package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ashureev/notechat/internal/chat"
	"github.com/ashureev/notechat/internal/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	chatURL   string
	chatToken string
	chatNote  string
	chatUser  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant of a note over the relay websocket",
	Long: `Open a websocket to a running relay, log in for a note and ask questions.

Every answer from the relay carries the whole thread; only new messages are
printed. Type /quit or press Ctrl-D to leave.

Examples:
  notechat chat --note standup-0412 --token "$ACCESS_TOKEN"
  notechat chat --note standup-0412 --user dev   # mints a token with SUPABASE_JWT_SECRET`,
	Args: cobra.NoArgs,
	RunE: runChatCmd,
}

func init() {
	chatCmd.Flags().StringVar(&chatURL, "url", "ws://localhost:3001/ws", "relay websocket URL")
	chatCmd.Flags().StringVar(&chatToken, "token", "", "access token")
	chatCmd.Flags().StringVarP(&chatNote, "note", "n", "", "note id")
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "", "mint a token for this user instead of --token")
	_ = chatCmd.MarkFlagRequired("note")
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
	token := chatToken
	if token == "" {
		if chatUser == "" {
			return errors.New("either --token or --user is required")
		}
		var err error
		if token, err = mintToken(chatUser, "", time.Hour); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	conn, _, err := websocket.Dial(ctx, chatURL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", chatURL, err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	return runChat(ctx, conn, token, chatNote, cmd.InOrStdin(), cmd.OutOrStdout())
}

type frame struct {
	Type     chat.ResponseType `json:"type"`
	Success  bool              `json:"success"`
	Messages []chat.Message    `json:"messages"`
	Error    string            `json:"error"`
}

type chatClient struct {
	conn  *websocket.Conn
	out   io.Writer
	shown int
}

// runChat logs in and relays lines from in until EOF or /quit.
func runChat(ctx context.Context, conn *websocket.Conn, token, noteID string, in io.Reader, out io.Writer) error {
	c := &chatClient{conn: conn, out: out}
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	resp, err := c.send(ctx, map[string]any{"type": chat.RequestLogin, "token": token, "noteId": noteID})
	if err != nil {
		return err
	}
	if resp.Type == chat.ResponseError || !resp.Success {
		return fmt.Errorf("login failed: %s", resp.Error)
	}
	c.print(resp.Messages)
	_, _ = gray.Fprintf(out, "Logged in to note %s. Ask a question, /quit to leave.\n", noteID)

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		resp, err := c.send(ctx, map[string]any{"type": chat.RequestMessage, "message": line})
		if err != nil {
			return err
		}
		if resp.Type == chat.ResponseError {
			_, _ = red.Fprintf(out, "error: %s\n", resp.Error)
			continue
		}
		c.print(resp.Messages)
	}
	_, _ = fmt.Fprintln(out)
	return scanner.Err()
}

func (c *chatClient) send(ctx context.Context, req map[string]any) (*frame, error) {
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	var resp frame
	if err := wsjson.Read(ctx, c.conn, &resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &resp, nil
}

// print writes the messages not shown yet.
func (c *chatClient) print(msgs []chat.Message) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if c.shown > len(msgs) {
		c.shown = 0
	}
	for _, m := range msgs[c.shown:] {
		if m.Role == domain.RoleAssistant {
			_, _ = cyan.Fprintf(c.out, "assistant: %s\n", m.Text)
		} else {
			_, _ = gray.Fprintf(c.out, "%s: %s\n", m.Role, m.Text)
		}
	}
	c.shown = len(msgs)
}
