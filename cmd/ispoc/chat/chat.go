// Package chatcmder provides the chat command, an interactive policy
// assistant session in the terminal.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/apiclient"
	"github.com/papercomputeco/ispoc/pkg/cliui"
	"github.com/papercomputeco/ispoc/pkg/config"
	"github.com/papercomputeco/ispoc/pkg/dotdir"
	"github.com/papercomputeco/ispoc/pkg/logger"
	"github.com/papercomputeco/ispoc/pkg/prompt"
	"github.com/papercomputeco/ispoc/pkg/responses"
	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/pkg/utils"
	"github.com/papercomputeco/ispoc/proxy/header"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

const (
	cmdExit     = "/exit"
	cmdReset    = "/reset"
	cmdFeedback = "/feedback"
)

type chatCommander struct {
	proxyTarget string
	apiTarget   string
	model       string
	userID      string
	fresh       bool
	direct      bool
	render      bool

	cfg       *config.Config
	configDir string
	debug     bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	ddm     *dotdir.Manager
	state   *dotdir.SessionState
	session *responses.Session
	headers http.Header
	api     *apiclient.Client
	logger  *zap.Logger
}

var flagKeys = []string{
	config.FlagProxyTarget,
	config.FlagAPITarget,
}

const chatLongDesc string = `Start an interactive session with the policy assistant.

Questions are sent through the ispoc proxy, which adds the assistant
instructions and the policy document search, and the answer is streamed back
as it is written. The conversation is saved in the .ispoc/ directory so the
next "ispoc chat" continues where this one stopped.

With --direct the proxy is bypassed: the Responses API is called with
OPENAI_API_KEY and every completed answer is logged to the API server.

Commands inside the session:
  /reset      Start a new conversation
  /feedback   Answer the feedback survey
  /exit       Quit (Ctrl+D works too)

Examples:
  ispoc chat
  ispoc chat --new --proxy-target http://localhost:8080
  ispoc chat --direct --api-target http://localhost:8081`

const chatShortDesc string = "Chat with the policy assistant"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.Resolve(cmd, flagKeys)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.proxyTarget = cmder.cfg.Client.ProxyTarget
			cmder.apiTarget = cmder.cfg.Client.APITarget
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			if !cmd.Flags().Changed("render") {
				cmder.render = cliui.IsTerminal(cmd.OutOrStdout())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyTarget, &cmder.proxyTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name (default: the proxy's model)")
	cmd.Flags().StringVar(&cmder.userID, "user-id", "", "User id recorded with each turn (default: anonymous)")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of resuming the saved one")
	cmd.Flags().BoolVar(&cmder.direct, "direct", false, "Call the Responses API directly and log turns to the API server")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render answers as markdown (default: when stdout is a terminal)")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.loadState(); err != nil {
		return err
	}

	runner, err := c.newRunner()
	if err != nil {
		return err
	}
	c.session = responses.NewSession(runner)
	c.session.Resume(c.state.ContinuationID)

	if c.direct {
		c.api, err = apiclient.New(apiclient.Config{BaseURL: c.apiTarget, Logger: c.logger})
		if err != nil {
			return err
		}
	}

	c.printBanner()
	return c.loop(ctx)
}

// loadState resumes the saved conversation unless --new was given.
func (c *chatCommander) loadState() error {
	c.ddm = dotdir.NewManager()

	if c.fresh {
		if err := c.ddm.ClearSessionState(c.configDir); err != nil {
			return fmt.Errorf("clearing session state: %w", err)
		}
	}

	state, err := c.ddm.LoadSessionState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session state: %w", err)
	}
	if state == nil {
		state = &dotdir.SessionState{SessionID: uuid.NewString()}
	}
	c.state = state
	return nil
}

func (c *chatCommander) newRunner() (*responses.Client, error) {
	c.headers = http.Header{}
	c.headers.Set(header.SessionIDHeader, c.state.SessionID)
	if c.userID != "" {
		c.headers.Set(header.UserIDHeader, c.userID)
	}

	rc := &responses.Config{
		Model:   c.model,
		Logger:  c.logger,
		Headers: c.headers,
	}

	if c.direct {
		loader, err := prompt.NewLoader(c.cfg.Proxy.InstructionsPath, c.logger)
		if err != nil {
			return nil, fmt.Errorf("loading instructions: %w", err)
		}

		rc.BaseURL = strings.TrimRight(c.cfg.Proxy.Upstream, "/") + "/v1"
		rc.APIKey = config.LoadSecrets().OpenAIAPIKey
		rc.Instructions = loader.Instructions()
		rc.VectorStoreID = c.cfg.Proxy.VectorStoreID
		rc.Store = true
		if rc.Model == "" {
			rc.Model = c.cfg.Proxy.Model
		}
	} else {
		rc.BaseURL = strings.TrimRight(c.proxyTarget, "/") + "/v1"
		rc.Store = true
	}

	return responses.NewClient(rc)
}

func (c *chatCommander) printBanner() {
	fmt.Fprintln(c.out)
	if c.state.ContinuationID != "" {
		fmt.Fprintf(c.out, "  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.IDStyle.Render(utils.Truncate(c.state.ContinuationID, 16)),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	target := c.proxyTarget
	if c.direct {
		target = c.cfg.Proxy.Upstream
	}
	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Target:"),
		cliui.NameStyle.Render(target),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. /reset, /feedback, /exit or Ctrl+D."))
}

func (c *chatCommander) loop(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, cliui.ForWriter(c.out, userPrompt))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case cmdExit:
			fmt.Fprintln(c.out)
			return nil
		case cmdReset:
			if err := c.reset(); err != nil {
				fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
			}
			continue
		case cmdFeedback:
			if err := c.feedback(ctx, scanner); err != nil {
				fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
			}
			continue
		}

		if err := c.ask(ctx, input); err != nil {
			fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// ask runs one turn, prints the answer and persists the continuation id.
func (c *chatCommander) ask(ctx context.Context, query string) error {
	var (
		outcome *responses.Outcome
		err     error
	)

	if c.render {
		// Markdown is rendered once the whole answer is known.
		err = cliui.Step(c.out, "Searching policy documents", func() error {
			outcome, err = c.session.Send(ctx, query, func(responses.ContentItem) {})
			return err
		})
		if err == nil {
			rendered, renderErr := cliui.RenderMarkdown(outcome.Text)
			if renderErr != nil {
				c.logger.Debug("markdown rendering failed", zap.Error(renderErr))
			}
			fmt.Fprint(c.out, rendered)
		}
	} else {
		fmt.Fprint(c.out, cliui.ForWriter(c.out, assistantPrompt))
		printer := &deltaPrinter{w: c.out, last: -1}
		outcome, err = c.session.Send(ctx, query, printer.print)
		fmt.Fprint(c.out, "\n\n")
	}
	if err != nil {
		return describeTurnError(err)
	}

	if outcome.State == responses.StateErrored {
		fmt.Fprintf(c.errOut, "  %s %s\n\n", cliui.WarnMark, cliui.DimStyle.Render("The answer may be incomplete."))
	}

	c.state.ContinuationID = outcome.ContinuationID
	c.state.UpdatedAt = time.Now().UTC()
	if err := c.ddm.SaveSessionState(c.state, c.configDir); err != nil {
		c.logger.Warn("failed to save session state", zap.Error(err))
	}

	if c.direct && outcome.State == responses.StateCompleted {
		c.logTurn(ctx, outcome)
	}
	return nil
}

// logTurn records a direct-mode turn on the API server. Failures are
// reported but never end the session.
func (c *chatCommander) logTurn(ctx context.Context, outcome *responses.Outcome) {
	err := c.api.LogQuery(ctx, &storage.QueryLog{
		Query:          outcome.Query,
		Response:       outcome.Text,
		UserID:         c.userID,
		SessionID:      c.state.SessionID,
		ContinuationID: outcome.ContinuationID,
	})
	if err != nil {
		c.logger.Warn("failed to log query", zap.Error(err))
		fmt.Fprintf(c.errOut, "  %s %s\n\n", cliui.WarnMark, cliui.DimStyle.Render("This turn was not logged."))
	}
}

func (c *chatCommander) reset() error {
	c.session.Reset()
	c.state = &dotdir.SessionState{SessionID: uuid.NewString()}
	c.headers.Set(header.SessionIDHeader, c.state.SessionID)
	if err := c.ddm.ClearSessionState(c.configDir); err != nil {
		return fmt.Errorf("clearing session state: %w", err)
	}
	fmt.Fprintf(c.out, "  %s New conversation\n\n", cliui.SuccessMark)
	return nil
}

// surveyQuestions follow the widget's numbering, q1 through q6.
var surveyQuestions = []string{
	"How would you rate the assistant (1-5)?",
	"What did you like?",
	"What frustrated you?",
	"What feature would you add?",
	"Would you recommend it to a colleague?",
	"Anything else? (optional)",
}

func (c *chatCommander) feedback(ctx context.Context, scanner *bufio.Scanner) error {
	if c.api == nil {
		var err error
		c.api, err = apiclient.New(apiclient.Config{BaseURL: c.apiTarget, Logger: c.logger})
		if err != nil {
			return err
		}
	}

	answers := make([]string, len(surveyQuestions))
	for i, q := range surveyQuestions {
		fmt.Fprintf(c.out, "  %s ", cliui.KeyStyle.Render(q))
		if !scanner.Scan() {
			return errors.New("feedback cancelled")
		}
		answers[i] = strings.TrimSpace(scanner.Text())
	}

	f := &storage.Feedback{
		Rating:             answers[0],
		Liked:              answers[1],
		Frustrated:         answers[2],
		FeatureRequest:     answers[3],
		Recommendation:     answers[4],
		AdditionalComments: answers[5],
	}
	if err := f.Validate(); err != nil {
		return errors.New("only the last question may be left blank")
	}

	if err := c.api.SubmitFeedback(ctx, f); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\n  %s Thanks for the feedback\n\n", cliui.SuccessMark)
	return nil
}

// deltaPrinter writes deltas as they arrive. A new content index starts a
// new line, matching how fragments are joined in the final text.
type deltaPrinter struct {
	w    io.Writer
	last int
}

func (p *deltaPrinter) print(item responses.ContentItem) {
	if p.last >= 0 && item.Index != p.last {
		fmt.Fprintln(p.w)
	}
	p.last = item.Index
	fmt.Fprint(p.w, item.Text.Value)
}

// describeTurnError turns a hard failure into the message shown to the user.
func describeTurnError(err error) error {
	var transportErr *responses.TransportError
	switch {
	case errors.Is(err, responses.ErrTurnInFlight):
		return err
	case errors.As(err, &transportErr) && transportErr.StatusCode == 0:
		return fmt.Errorf("could not reach the assistant: %w", transportErr.Err)
	default:
		return err
	}
}
