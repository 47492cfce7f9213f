package xqdto

// DomainError is the stable error shape shown to clients. Code never changes once published.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	// Details carries validation items for setup errors.
	Details []ValidationItem `json:"details,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "xiangqi service error"
}
