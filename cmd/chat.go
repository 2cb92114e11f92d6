package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/extract"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/nikogura/resumelm/pkg/reconcile"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var chatExtra string

//nolint:gochecknoglobals // Cobra boilerplate
var resumeChatCmd = &cobra.Command{
	Use:   "chat <resume-id>",
	Short: "Talk to an assistant about one resume and apply its suggestions",
	Long: `Start a conversation about a resume. Replies stream as they are written;
press Ctrl+C to stop a reply without leaving the chat.

Commands:
  /suggest <section> <index> [instructions]   propose a rewrite of one item
  /revise <instructions>                      propose a rewrite of the whole resume
  /quit                                       leave the chat

Sections are work_experience, education, skills and projects; items are numbered from 0.
Suggestions are shown first and saved only when you accept them.

Example:
  resumelm resume chat 9c4f...
  > /suggest work_experience 0 quantify the impact`,
	Args: cobra.ExactArgs(1),
	RunE: runResumeChat,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	resumeCmd.AddCommand(resumeChatCmd)
	resumeChatCmd.Flags().StringVar(&chatExtra, "context", "", "Additional instructions for the assistant")
}

// chatCommand is one parsed line of chat input.
type chatCommand struct {
	quit        bool
	message     string
	section     string
	index       int
	instruction string
}

// parseChatCommand reads a line typed in the chat. Plain text is a message.
func parseChatCommand(line string) (c chatCommand, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		c.message = line
		return c, err
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		c.quit = true
	case "/revise":
		c.section = model.SectionWholeResume
		c.instruction = strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		if c.instruction == "" {
			err = apierr.Validation("usage: /revise <instructions>")
		}
	case "/suggest":
		if len(fields) < 3 {
			err = apierr.Validation("usage: /suggest <section> <index> [instructions]")
			return c, err
		}
		c.section = fields[1]
		c.index, err = strconv.Atoi(fields[2])
		if err != nil {
			err = apierr.Newf(apierr.KindValidation, "item index %q is not a number", fields[2])
			return c, err
		}
		c.instruction = strings.TrimSpace(strings.Join(fields[3:], " "))
	default:
		err = apierr.Newf(apierr.KindValidation, "unknown command %s", fields[0])
	}
	return c, err
}

func runResumeChat(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var resume model.Resume
	resume, err = a.store.GetResumeByID(ctx, a.cfg.UserID, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Chatting about %q. Type /quit to leave, Ctrl+C stops a reply.\n", resume.Name)

	in := bufio.NewReader(os.Stdin)
	var history []extract.ChatMessage

	for {
		fmt.Print("\n> ")
		var line string
		line, err = in.ReadString('\n')
		if err == io.EOF && strings.TrimSpace(line) == "" {
			err = nil
			fmt.Println()
			return err
		}
		if err != nil && err != io.EOF {
			return err
		}
		err = nil

		var c chatCommand
		c, err = parseChatCommand(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			err = nil
			continue
		}

		switch {
		case c.quit:
			return err
		case c.section != "":
			suggestTurn(a, in, args[0], c)
		case c.message != "":
			history = chatTurn(a, args[0], history, c.message)
		}
	}
}

// chatTurn streams one reply. Ctrl+C cancels only this reply.
func chatTurn(a *app, resumeID string, history []extract.ChatMessage, message string) (next []extract.ChatMessage) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	result, err := a.runner.Chat(ctx, pipeline.ChatInput{
		UserID:       a.cfg.UserID,
		ResumeID:     resumeID,
		History:      history,
		Message:      message,
		CustomPrompt: chatExtra,
		Config:       a.cfg.Client,
		OnDelta: func(fragment string) (err error) {
			_, err = fmt.Print(fragment)
			return err
		},
	})
	fmt.Println()

	next = history
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "(stopped)")
			return next
		}
		reportFailure(failedStage(result.State), err)
		return next
	}

	next = result.History
	return next
}

// suggestTurn shows a proposed edit and saves it if the user accepts.
func suggestTurn(a *app, in *bufio.Reader, resumeID string, c chatCommand) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var s *spinner
	if !getVerbose() {
		s = newSpinner("Preparing suggestion...")
		s.start()
	}

	result, err := a.runner.Suggest(ctx, pipeline.SuggestionInput{
		UserID:      a.cfg.UserID,
		ResumeID:    resumeID,
		Section:     c.section,
		Index:       c.index,
		Instruction: c.instruction,
		Config:      a.cfg.Client,
	})

	if s != nil {
		s.stopSpinner()
	}

	if err != nil {
		reportFailure(failedStage(result.State), err)
		return
	}

	var shown interface{} = result.Preview.Content()
	if c.section != model.SectionWholeResume {
		shown, _ = reconcile.Item(result.Preview.Sections, c.section, c.index)
	}
	if err = printValue(shown, outputFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	fmt.Print("Apply this change? [y/N]: ")
	answer, _ := in.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer != "y" && answer != "yes" {
		fmt.Println("Discarded.")
		return
	}

	_, err = a.runner.ApplySuggestion(context.WithoutCancel(ctx), a.cfg.UserID, resumeID, result.Suggestion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply suggestion: %s\n", apierr.RedactSecrets(err.Error()))
		return
	}
	fmt.Println("✓ Resume updated")
}
