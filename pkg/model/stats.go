package model

// StatsKey identifies one row of per-solver statistics. StageNumber 0 is the
// rollup over each pair's primary stage.
type StatsKey struct {
	StageNumber     int
	ConfigurationID int64
}

// SolverStats is the aggregate for one (job space, stage, configuration).
type SolverStats struct {
	JobSpaceID        int64  `json:"job_space_id"`
	StageNumber       int    `json:"stage_number"`
	ConfigurationID   int64  `json:"configuration_id"`
	ConfigurationName string `json:"configuration_name"`
	SolverID          int64  `json:"solver_id"`
	SolverName        string `json:"solver_name"`

	CompleteJobPairs    int `json:"complete"`
	CorrectJobPairs     int `json:"correct"`
	IncorrectJobPairs   int `json:"incorrect"`
	UnknownJobPairs     int `json:"unknown"`
	FailedJobPairs      int `json:"failed"`
	ResourceOutJobPairs int `json:"resource_out"`
	IncompleteJobPairs  int `json:"incomplete"`

	WallTime  float64 `json:"wallclock"`
	CPUTime   float64 `json:"cpu"`
	Conflicts int     `json:"conflicts"`
}

func (s SolverStats) Key() StatsKey {
	return StatsKey{StageNumber: s.StageNumber, ConfigurationID: s.ConfigurationID}
}

// Touched is the number of pairs that contributed to the row.
func (s SolverStats) Touched() int {
	return s.CompleteJobPairs + s.FailedJobPairs + s.IncompleteJobPairs
}
