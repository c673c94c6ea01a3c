package net

// RPCResponse captures both a response and a potential error. Updates are
// written back on the connection the command came from.
type RPCResponse struct {
	Updates []*Update
	Error   error
}

// RPC encapsulates an incoming message and provides a response mechanism.
// The connection it came from is not read again until Respond is called.
type RPC struct {
	From     string
	Command  Message
	RespChan chan<- RPCResponse
}

// Respond is used to respond with updates, an error or both.
func (r RPC) Respond(updates []*Update, err error) {
	r.RespChan <- RPCResponse{updates, err}
}
