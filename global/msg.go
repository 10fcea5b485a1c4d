package global

// Msg is the JSON envelope every REST endpoint answers with.
type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{
		Code: 0,
		Msg:  "success",
		Data: data,
	}
}
