package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"unichatclient/internal/conversation"
	"unichatclient/internal/models"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Chat from the terminal",
	RunE:  runREPLCommand,
}

func runREPLCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conv, err := buildConversation(ctx, cfg)
	if err != nil {
		return err
	}
	defer conv.Reset()
	return runREPL(ctx, conv, cmd.InOrStdin(), cmd.OutOrStdout())
}

const replHelp = `commands:
  /new        start a new chat
  /regen      mark the last reply as regenerated
  /like       toggle like on the last reply
  /dislike    toggle dislike on the last reply
  /copy       copy the last reply
  /share      share the last reply
  /history    print the transcript
  /quit       exit`

// runREPL reads one line per turn from in. Each accepted line blocks until the
// reply settles.
func runREPL(ctx context.Context, conv *conversation.Conversation, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Fprintln(out, "type a message, /help for commands")

	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "/") {
			quit, err := runCommand(conv, line, out)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		sub, err := conv.Submit(ctx, line)
		if err != nil {
			if !conversation.IsRejection(err) {
				fmt.Fprintf(out, "! %v\n", err)
			}
			continue
		}
		turn, err := sub.Wait(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "! %v\n", err)
			continue
		}
		printTurn(out, turn)
	}
}

func runCommand(conv *conversation.Conversation, line string, out io.Writer) (bool, error) {
	switch line {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, replHelp)
		return false, nil
	case "/new":
		conv.Reset()
		fmt.Fprintln(out, "started a new chat")
		return false, nil
	case "/history":
		for _, turn := range conv.Snapshot().Turns {
			printTurn(out, turn)
		}
		return false, nil
	}

	last, ok := lastReply(conv)
	if !ok {
		return false, errors.New("no reply yet")
	}
	switch line {
	case "/regen":
		turn, err := conv.Regenerate(last.ID)
		if err != nil {
			return false, err
		}
		printTurn(out, turn)
	case "/like", "/dislike":
		turn, err := conv.ToggleFeedback(last.ID, models.Feedback(strings.TrimPrefix(line, "/")))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "feedback: %s\n", feedbackLabel(turn.Feedback))
	case "/copy":
		if err := conv.Copy(last.Content); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "copied")
	case "/share":
		fmt.Fprintf(out, "share: %s\n", conv.Share(last.Content))
	default:
		return false, errors.Errorf("unknown command %s", line)
	}
	return false, nil
}

func lastReply(conv *conversation.Conversation) (models.Turn, bool) {
	turns := conv.Snapshot().Turns
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == models.RoleAssistant && !turns[i].Pending {
			return turns[i], true
		}
	}
	return models.Turn{}, false
}

func printTurn(w io.Writer, turn models.Turn) {
	name := "assistant"
	if turn.Role == models.RoleUser {
		name = "you"
	}
	content := turn.Content
	if turn.Pending {
		content = "..."
	}
	fmt.Fprintf(w, "%s> %s\n", name, content)
}

func feedbackLabel(f models.Feedback) string {
	if f == models.FeedbackNone {
		return "none"
	}
	return string(f)
}
