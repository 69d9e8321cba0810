package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/oralread/internal/align"
	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/store/file"
	"github.com/MrWong99/oralread/internal/testdef"
	"github.com/MrWong99/oralread/internal/transport"
)

// maxReplayTimers bounds how many pending timers are drained after the
// script ends.
const maxReplayTimers = 100000

// scriptEvent is one line of a replay script. After is the virtual time
// elapsed since the previous line; the remaining fields use the websocket
// client message shape.
type scriptEvent struct {
	After string `json:"after,omitempty"`
	transport.ClientMessage
}

type replayOptions struct {
	userID string
	seed   uint64
	cfg    assessment.Config
}

func newReplayCmd(c *cli) *cobra.Command {
	var (
		testPath   string
		scriptPath string
		userID     string
		seed       uint64
		useConfig  bool
	)
	cmd := &cobra.Command{
		Use:   "replay --test <definition> [--script <events.jsonl>]",
		Short: "Run a scripted session against a test definition",
		Long: "Replay feeds a JSONL script of client messages through the assessment engine on a virtual clock " +
			"and prints the result as JSON. Each line is a client message with an optional \"after\" duration, e.g.\n\n" +
			`  {"after":"1.5s","type":"transcript","text":"a","final":true}` + "\n\n" +
			"Timers still pending when the script ends are fired in order, so unanswered items time out.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := file.Load(testPath)
			if err != nil {
				return err
			}
			settings := assessment.DefaultConfig()
			if useConfig {
				cfg, err := c.loadConfig()
				if err != nil {
					return err
				}
				settings = cfg.Assessment.Settings()
			}
			in := cmd.InOrStdin()
			if scriptPath != "" && scriptPath != "-" {
				f, err := os.Open(scriptPath)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			res, err := replay(def, in, replayOptions{userID: userID, seed: seed, cfg: settings})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&testPath, "test", "", "test definition file (YAML or JSON)")
	cmd.Flags().StringVar(&scriptPath, "script", "-", "JSONL event script, - for stdin")
	cmd.Flags().StringVar(&userID, "user", "replay", "user id recorded in the result")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "seed for item shuffling")
	cmd.Flags().BoolVar(&useConfig, "use-config", false, "take assessment settings from --config instead of the defaults")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}

// replay runs def against the script on a manual clock and returns the
// result. Items left unanswered time out once the script is exhausted.
func replay(def *testdef.Test, script io.Reader, opts replayOptions) (assessment.Result, error) {
	log := slog.Default()
	sched := assessment.NewManualScheduler()
	ctrl := assessment.NewController(def, replayPresenter{log: log}, replayRecognizer{}, sched,
		assessment.WithConfig(opts.cfg),
		assessment.WithRand(rand.New(rand.NewPCG(opts.seed, opts.seed))),
		assessment.WithLogger(log),
		assessment.WithUser(opts.userID),
	)
	ctrl.Start()

	sc := bufio.NewScanner(script)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() && !ctrl.Done() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		var se scriptEvent
		if err := json.Unmarshal([]byte(raw), &se); err != nil {
			return assessment.Result{}, fmt.Errorf("replay: line %d: %w", line, err)
		}
		ev, err := se.Event()
		if err != nil {
			return assessment.Result{}, fmt.Errorf("replay: line %d: %w", line, err)
		}
		if se.After != "" {
			d, err := time.ParseDuration(se.After)
			if err != nil {
				return assessment.Result{}, fmt.Errorf("replay: line %d: after: %w", line, err)
			}
			sched.Advance(ctrl, d)
		}
		ctrl.Handle(ev)
	}
	if err := sc.Err(); err != nil {
		return assessment.Result{}, fmt.Errorf("replay: read script: %w", err)
	}

	for n := 0; !ctrl.Done() && n < maxReplayTimers; n++ {
		if !sched.Flush(ctrl) {
			break
		}
	}

	if err := ctrl.Err(); err != nil {
		return assessment.Result{}, err
	}
	res, ok := ctrl.Result()
	if !ok {
		return assessment.Result{}, errors.New("replay: script ended before the assessment finished (a stage may be waiting for a continue message)")
	}
	log.Info("replay finished", "placed_level", res.PlacedLevel, "virtual_time", sched.Now())
	return res, nil
}

// replayPresenter logs what a browser would render.
type replayPresenter struct {
	log *slog.Logger
}

func (p replayPresenter) Present(pr assessment.Prompt) {
	p.log.Info("prompt", "stage", pr.StageID, "mode", pr.Mode, "index", pr.Index, "total", pr.Total, "text", pr.Text)
}

func (p replayPresenter) Words(words []align.Word) {
	p.log.Debug("words", "count", len(words))
}

func (p replayPresenter) Feedback(correct bool) {
	p.log.Info("feedback", "correct", correct)
}

func (p replayPresenter) Heard(text string) {
	p.log.Debug("heard", "text", text)
}

func (p replayPresenter) StageComplete(s assessment.Summary) {
	p.log.Info("stage complete", "stage", s.StageID, "score", s.Score, "total", s.Total)
}

func (p replayPresenter) Finished(assessment.Result) {}

func (p replayPresenter) Fail(err error) {
	p.log.Error("assessment failed", "err", err)
}

// replayRecognizer has no audio; scripts supply transcripts directly.
type replayRecognizer struct{}

func (replayRecognizer) Start() error { return nil }
func (replayRecognizer) Stop() error  { return nil }
