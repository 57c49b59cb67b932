package artifact

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/pipeline"
)

// StagePrefix is the storage prefix holding the outputs of one stage.
func StagePrefix(jobID, pairID int64, stageNumber int) string {
	return fmt.Sprintf("%d/%d/stage-%d/", jobID, pairID, stageNumber)
}

// Checker confirms that the stages a stage consumes left outputs behind.
type Checker struct {
	provider Provider
	logger   *zap.Logger
}

func NewChecker(p Provider, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{provider: p, logger: logger}
}

// Outputs lists every stored output of a stage, following continuation
// tokens. An empty bench suffix keeps every object.
func (c *Checker) Outputs(ctx context.Context, jobID, pairID int64, stageNumber int, attrs model.StageAttributes) ([]ObjectSummary, error) {
	prefix := StagePrefix(jobID, pairID, stageNumber)
	var (
		out   []ObjectSummary
		token string
	)
	for {
		page, err := c.provider.List(ctx, ListOptions{Prefix: prefix, ContinuationToken: token})
		if err != nil {
			return nil, fmt.Errorf("list outputs of pair %d stage %d: %w", pairID, stageNumber, err)
		}
		for _, obj := range page.Objects {
			rel := strings.TrimPrefix(obj.Key, prefix)
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue
			}
			if !pipeline.MatchesBenchSuffix(attrs, rel) && !pipeline.MatchesBenchSuffix(attrs, path.Base(rel)) {
				continue
			}
			out = append(out, obj)
		}
		if !page.IsTruncated || page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}
	return out, nil
}

// Missing returns the stage numbers whose artifacts the given stage consumes
// but which have no stored outputs. attrs maps stage numbers to the job's
// stage attributes; stages without attributes accept any file.
func (c *Checker) Missing(ctx context.Context, pair *model.JobPair, stageNumber int, attrs map[int]model.StageAttributes) ([]int, error) {
	st := pair.Stage(stageNumber)
	if st == nil {
		return nil, fmt.Errorf("pair %d has no stage %d", pair.ID, stageNumber)
	}
	var missing []int
	for _, d := range st.Dependencies {
		if d.Kind != model.DependencyArtifact {
			continue
		}
		objs, err := c.Outputs(ctx, pair.JobID, pair.ID, d.InputNumber, attrs[d.InputNumber])
		if err != nil {
			return nil, err
		}
		if len(objs) == 0 {
			c.logger.Debug("Stage artifacts missing",
				zap.Int64("pair_id", pair.ID),
				zap.Int("stage", stageNumber),
				zap.Int("source_stage", d.InputNumber))
			missing = append(missing, d.InputNumber)
		}
	}
	return missing, nil
}

// AttributesByStage indexes a job's stage attributes by stage number.
func AttributesByStage(attrs []model.StageAttributes) map[int]model.StageAttributes {
	out := make(map[int]model.StageAttributes, len(attrs))
	for _, a := range attrs {
		out[a.StageNumber] = a
	}
	return out
}
