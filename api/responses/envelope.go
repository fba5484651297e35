package responses

// Envelope wraps every 2xx body as {"data": ...}.
type Envelope struct {
	Data any `json:"data"`
}

// ErrorBody carries a stable machine code, a display message and optional structured details
// such as the conflicting items of a rejected checkout.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
