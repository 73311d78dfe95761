package deploy

// Result is the uniform outcome of a deploy
type Result struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
	Target  Target `json:"target,omitempty"`
	// Phase is the last phase reached: done on success, the failing phase otherwise
	Phase Phase `json:"phase,omitempty"`
}

func succeeded(target Target, url string) Result {
	return Result{
		Success: true,
		URL:     url,
		Message: "Deployed to " + string(target),
		Target:  target,
		Phase:   PhaseDone,
	}
}

func failed(target Target, phase Phase, err error) Result {
	return Result{
		Success: false,
		Message: err.Error(),
		Target:  target,
		Phase:   phase,
	}
}
