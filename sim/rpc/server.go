package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/network"
	"github.com/matrix-sim/matrix/sim/server"
)

// HandlerFunc executes one request. It runs in its own fiber and may block.
type HandlerFunc func(input []byte) ([]byte, error)

// Server dispatches incoming requests to registered methods.
type Server struct {
	rt      *server.Runtime
	log     *logrus.Entry
	methods map[string]HandlerFunc
	socket  *network.ServerSocket
}

var _ network.SocketHandler = (*Server)(nil)

func NewServer(rt *server.Runtime) *Server {
	return &Server{
		rt:      rt,
		log:     rt.ComponentLogger("RPC-Server"),
		methods: make(map[string]HandlerFunc),
	}
}

// Register binds method, conventionally "Service.Method". Panics on duplicates.
func (s *Server) Register(method string, h HandlerFunc) {
	if _, ok := s.methods[method]; ok {
		panic(fmt.Sprintf("rpc method %q already registered", method))
	}
	s.methods[method] = h
}

// Handle registers a typed handler.
func Handle[Req, Resp any](s *Server, method string, fn func(req Req) (Resp, error)) {
	s.Register(method, func(input []byte) ([]byte, error) {
		var req Req
		if err := Unmarshal(input, &req); err != nil {
			return nil, err
		}
		resp, err := fn(req)
		if err != nil {
			return nil, err
		}
		return Marshal(resp)
	})
}

// Start listens on port.
func (s *Server) Start(port network.Port) {
	s.socket = s.rt.Transport().Serve(port, s)
}

func (s *Server) Shutdown() {
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}

func (s *Server) HandleMessage(msg []byte, reply *network.ReplySocket) {
	var req request
	if err := json.Unmarshal(msg, &req); err != nil {
		s.log.Warnf("drop malformed request from %s: %v", reply.Peer(), err)
		return
	}
	s.rt.Spawn("rpc:"+req.Method, func() {
		out, err := s.invoke(req)
		resp := response{ID: req.ID, Body: out}
		if err != nil {
			code, ok := CodeOf(err)
			if !ok {
				code = ExecutionError
			}
			resp.Code, resp.Message, resp.Body = code, err.Error(), nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			s.log.Errorf("encode response to %s: %v", req.Method, err)
			return
		}
		reply.Send(data)
	})
}

func (s *Server) invoke(req request) ([]byte, error) {
	h, ok := s.methods[req.Method]
	if !ok {
		return nil, newError(ExecutionError, "method %q not found", req.Method)
	}
	s.log.Infof("invoke %s #%d", req.Method, req.ID)
	return h([]byte(req.Body))
}

func (s *Server) HandleDisconnect(string) {}
