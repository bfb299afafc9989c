package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vehicle-advisor/internal/conversation"
	"vehicle-advisor/internal/usecase"
)

const (
	cmdRestart = ":restart"
	cmdQuit    = ":quit"
)

var chatClass string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive recommendation conversation",
	Long: `Answer each question in free text, or type the number of a suggested
option. Type :restart to start over and :quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return runChat(ctx, a.Sessions, chatClass, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatClass, "class", "bicycle", "vehicle class: bicycle or motorcycle")
}

type chatSessions interface {
	Start(ctx context.Context, class string) (string, conversation.State, error)
	Answer(ctx context.Context, id, answer string) (conversation.State, error)
	Reset(ctx context.Context, id string) (conversation.State, error)
	End(ctx context.Context, id string) error
}

func runChat(ctx context.Context, sessions chatSessions, class string, in io.Reader, out io.Writer) error {
	id, state, err := sessions.Start(ctx, class)
	if err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	defer func() { _ = sessions.End(context.WithoutCancel(ctx), id) }()

	fmt.Fprintf(out, "%d %ss in the pool.\n", len(state.Candidates), state.Class.Noun())
	printState(out, state)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case cmdQuit:
			return nil
		case cmdRestart:
			state, err = sessions.Reset(ctx, id)
			if err != nil {
				return fmt.Errorf("restart conversation: %w", err)
			}
			fmt.Fprintln(out, "Starting over.")
			printState(out, state)
			continue
		}

		if state.Status.Terminal() {
			fmt.Fprintf(out, "Type %s to start over or %s to leave.\n", cmdRestart, cmdQuit)
			continue
		}

		state, err = sessions.Answer(ctx, id, pickOption(line, state.Options))
		if err != nil {
			var ue *usecase.Error
			if errors.As(err, &ue) && ue.Code != usecase.ErrorInternal {
				fmt.Fprintf(out, "! %s\n", ue.Reason)
				continue
			}
			return err
		}
		printState(out, state)
	}
}

// pickOption maps a 1-based option number to its text. Anything else is
// taken as a free-text answer.
func pickOption(line string, options []string) string {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(options) {
		return line
	}
	return options[n-1]
}

func printState(out io.Writer, s conversation.State) {
	if s.Error != "" {
		if s.Retryable {
			fmt.Fprintf(out, "! %s (answer again to retry)\n", s.Error)
		} else {
			fmt.Fprintf(out, "! %s\n", s.Error)
		}
	}
	switch s.Status {
	case conversation.StatusRecommended:
		r := s.Result
		name := r.Details.Name
		if r.Details.Brand != "" && !strings.HasPrefix(name, r.Details.Brand) {
			name = r.Details.Brand + " " + name
		}
		fmt.Fprintf(out, "\nRecommended: %s (%s)\n%s\n", name, r.CandidateID, r.Summary)
		for _, c := range s.Candidates {
			if c.ID == r.CandidateID && c.PageURL != "" {
				fmt.Fprintf(out, "More: %s\n", c.PageURL)
			}
		}
		fmt.Fprintf(out, "\nType %s to start over or %s to leave.\n", cmdRestart, cmdQuit)
		return
	case conversation.StatusNoMatch:
		fmt.Fprintf(out, "\nType %s to start over or %s to leave.\n", cmdRestart, cmdQuit)
		return
	}
	if !s.HasQuestion() {
		return
	}
	if len(s.History) > 0 {
		fmt.Fprintf(out, "(%d remaining)\n", len(s.Candidates))
	}
	fmt.Fprintf(out, "\n%s\n", s.Question)
	for i, o := range s.Options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, o)
	}
}
