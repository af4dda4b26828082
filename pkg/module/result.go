package module

// Result is the outcome of one module run.
type Result struct {
	Changed bool     `json:"changed"`
	Failed  bool     `json:"failed,omitempty"`
	Error   string   `json:"error,omitempty"`
	Result  *Payload `json:"result,omitempty"`
}

// Payload wraps the entry or message a run produced.
type Payload struct {
	TPM interface{} `json:"tpm"`
}
