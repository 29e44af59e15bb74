package server

import (
	"errors"
	"io"
	"net"

	"github.com/4lexvav/logkv/internal/logging"
	"github.com/4lexvav/logkv/internal/protocol"
)

// handleConn drives one connection through repeated
// read -> dispatch -> write cycles until the client disconnects or sends
// a malformed frame. Connection failures never touch the shared engine.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		req, err := protocol.DecodeRequest(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logging.Debug("closing connection %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		status, payload := s.dispatch(req)

		resp, err := protocol.EncodeResponse(status, payload)
		if err != nil {
			logging.Error("encode response: %v", err)
			return
		}
		if _, err := conn.Write(resp); err != nil {
			logging.Debug("client %s disconnected mid-response", conn.RemoteAddr())
			return
		}
	}
}

// dispatch maps a request to the corresponding engine operation and
// translates the outcome into a response status. A get miss is a normal
// empty success; a remove miss is an error response.
func (s *Server) dispatch(req *protocol.Request) (status byte, payload string) {
	switch req.Op {
	case protocol.OpGet:
		value, found, err := s.engine.Get(req.Key)
		if err != nil {
			return protocol.StatusErr, err.Error()
		}
		if !found {
			return protocol.StatusOK, ""
		}
		return protocol.StatusValue, value

	case protocol.OpSet:
		if err := s.engine.Set(req.Key, req.Value); err != nil {
			return protocol.StatusErr, err.Error()
		}
		return protocol.StatusOK, ""

	case protocol.OpRemove:
		if err := s.engine.Remove(req.Key); err != nil {
			return protocol.StatusErr, err.Error()
		}
		return protocol.StatusOK, ""

	case protocol.OpReset:
		if err := s.engine.Reset(); err != nil {
			return protocol.StatusErr, err.Error()
		}
		return protocol.StatusOK, ""
	}

	// DecodeRequest validates ops, so this is unreachable.
	return protocol.StatusErr, "unknown operation"
}
