package domain

// DrainMeta summarises one pass of the execution engine over the scheduler.
type DrainMeta struct {
	BatchID  string  `json:"batch_id"`
	Executed int     `json:"executed"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Errored  int     `json:"errored"`
	Defects  int     `json:"defects"`
	Warnings int     `json:"warnings"`
	Duration float64 `json:"duration_seconds"`
}
