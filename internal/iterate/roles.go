package iterate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chembl-text2sql/text2sql/internal/judge"
	"github.com/chembl-text2sql/text2sql/internal/promptbuild"
	"github.com/chembl-text2sql/text2sql/internal/provider"
	"github.com/chembl-text2sql/text2sql/internal/schedule"
	"github.com/chembl-text2sql/text2sql/internal/stagelog"
)

// historyViews renders the controller's rolling history, windowed to
// cfg.HistoryWindow, as the slice promptbuild.RenderHistory expects.
func (c *Controller) historyViews() []promptbuild.IterationView {
	views := make([]promptbuild.IterationView, len(c.history))
	for i, it := range c.history {
		views[i] = it.view()
	}
	return promptbuild.Window(views, c.cfg.HistoryWindow)
}

// generateUP asks the prompt-writer role — which shares the judge's
// provider/model schedule — to produce the next user-prompt draft. The
// prompt-writer is given the original question, the active filter-profile
// guidance, and the windowed history. Mirrors callJudge's retry-with-offset
// loop (spec.md §4.6 step 2): each retry advances the judge-role model by
// offset = retry index, up to cfg.JudgeCallRetries attempts.
func (c *Controller) generateUP(ctx context.Context, uq string, n int) (string, error) {
	ctx, pop := stagelog.Push(ctx, "PROMPT_WRITER")
	defer pop()

	retries := c.cfg.JudgeCallRetries
	if retries <= 0 {
		retries = 1
	}

	task := fmt.Sprintf(
		"<TASK>Write or refine the user-prompt (UP) that will be handed to the SQL-writer so it can answer the question below against the schema in the system prompt.</TASK>\n<UQ>%s</UQ>\n%s\n%s",
		uq, promptbuild.FilterProfileBlock(c.cfg.FilterProfile), promptbuild.RenderHistory(c.historyViews()),
	)

	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: c.sp.Text},
		{Role: provider.RoleUser, Content: task},
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		model := schedule.ModelAt(c.judgeSchedule, n-1, attempt, c.fixedJModel)

		prov, err := c.judgeFactory(model)
		if err != nil {
			lastErr = fmt.Errorf("prompt-writer: resolving provider: %w", err)
			c.emitter.Emit(ctx, slog.LevelWarn, "prompt-writer provider resolution failed", slog.String("model", model), slog.String("error", err.Error()))
			continue
		}

		text, err := prov.GenerateText(ctx, messages, c.cfg.Temperature, 0)
		if err != nil {
			lastErr = fmt.Errorf("prompt-writer: %w", err)
			c.emitter.Emit(ctx, slog.LevelWarn, "prompt-writer call failed", slog.String("model", model), slog.String("error", err.Error()))
			continue
		}
		if text == "" {
			lastErr = fmt.Errorf("prompt-writer: empty response from %s", prov.Name())
			c.emitter.Emit(ctx, slog.LevelWarn, "prompt-writer returned empty response", slog.String("model", model))
			continue
		}
		return text, nil
	}

	return "", lastErr
}

// generateSQL asks prov to produce a SQL statement for uq, given the
// latest UP and the windowed history as conversational context.
func (c *Controller) generateSQL(ctx context.Context, prov provider.Provider, uq, up string) (string, error) {
	ctx, pop := stagelog.Push(ctx, "SQL_WRITER")
	defer pop()

	conversation := []provider.Message{
		{Role: provider.RoleSystem, Content: c.sp.Text},
		{Role: provider.RoleUser, Content: fmt.Sprintf("<UQ>%s</UQ>\n<UP>%s</UP>\n%s", uq, up, promptbuild.RenderHistory(c.historyViews()))},
	}

	sqlText, err := prov.GenerateSQL(ctx, uq, c.sp.Text, conversation)
	if err != nil {
		return "", fmt.Errorf("sql-writer (%s): %w", prov.Name(), err)
	}
	if sqlText == "" {
		return "", fmt.Errorf("sql-writer (%s): empty SQL", prov.Name())
	}
	return sqlText, nil
}

// callJudge invokes the judge role, retrying up to cfg.JudgeCallRetries
// times against the next scheduled judge model whenever the output is
// malformed or violates the decision/score invariant (spec.md §4.7). It
// never returns an error: on exhaustion it returns the last successfully
// parsed *judge.Judgement (possibly nil if every attempt was malformed)
// rather than discarding it, so judge.ShouldStop can still fire on
// score>=threshold even when that last attempt's decision disagreed.
func (c *Controller) callJudge(ctx context.Context, uq, up, sqlText, resRender, resErr string, n int) (*judge.Judgement, string, string) {
	ctx, pop := stagelog.Push(ctx, "JUDGE")
	defer pop()

	retries := c.cfg.JudgeCallRetries
	if retries <= 0 {
		retries = 1
	}

	res := resRender
	if resErr != "" {
		res = "ERROR: " + resErr
	}

	task := fmt.Sprintf(
		"<TASK>Judge whether RES correctly and completely answers UQ given SQL and UP. Reply with a single JSON object: {\"analysis\": string, \"score\": number in [0,1], \"decision\": \"YES\"|\"NO\"}. If SQL contains a LIMIT/row-cap that UQ and UP did not request, score it down.</TASK>\n<UQ>%s</UQ>\n<UP>%s</UP>\n<SQL>%s</SQL>\n<RES>%s</RES>",
		uq, up, sqlText, res,
	)

	var lastModel, lastRaw string
	var lastJudgement *judge.Judgement

	for attempt := 0; attempt < retries; attempt++ {
		model := schedule.ModelAt(c.judgeSchedule, n-1, attempt, c.fixedJModel)
		lastModel = model

		prov, err := c.judgeFactory(model)
		if err != nil {
			c.emitter.Emit(ctx, slog.LevelWarn, "judge provider resolution failed", slog.String("model", model), slog.String("error", err.Error()))
			continue
		}

		messages := []provider.Message{
			{Role: provider.RoleSystem, Content: c.sp.Text},
			{Role: provider.RoleUser, Content: task},
		}

		raw, err := prov.GenerateText(ctx, messages, c.cfg.JudgeTemperature, 0)
		if err != nil {
			c.emitter.Emit(ctx, slog.LevelWarn, "judge call failed", slog.String("model", model), slog.String("error", err.Error()))
			continue
		}
		lastRaw = raw

		j, err := judge.Parse(raw)
		if err != nil {
			c.emitter.Emit(ctx, slog.LevelWarn, "judge output malformed", slog.String("model", model), slog.String("error", err.Error()))
			if dumpErr := c.writeMalformedJudgeDump(n, attempt, raw); dumpErr != nil {
				c.emitter.Emit(ctx, slog.LevelWarn, "failed to persist malformed judge output", slog.String("error", dumpErr.Error()))
			}
			continue
		}
		lastJudgement = j
		if err := judge.CheckInvariant(j, c.cfg.JudgeScoreThreshold); err != nil {
			c.emitter.Emit(ctx, slog.LevelWarn, "judge invariant violated", slog.String("model", model), slog.String("error", err.Error()))
			continue
		}

		return j, model, raw
	}

	// Retries exhausted: accept whatever fields the last successfully
	// parsed attempt produced, even though it failed the invariant check
	// (spec.md §4.6 step 6) — this is what lets judge.ShouldStop fire on
	// score>=threshold even when decision=NO.
	c.emitter.Emit(ctx, slog.LevelWarn, "judge exhausted retries, using last parsed judgement", slog.Int("iteration", n))
	return lastJudgement, lastModel, lastRaw
}
