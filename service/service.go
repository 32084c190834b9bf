// Package service runs the request loop: bind the endpoint, accept one
// client, tear the endpoint down, answer the request, repeat.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-verdict/logging"
	"github.com/RyanBlaney/sonido-verdict/protocol"
	"github.com/RyanBlaney/sonido-verdict/trainer"
	"github.com/RyanBlaney/sonido-verdict/transport"
	"github.com/RyanBlaney/sonido-verdict/workspace"
)

// State is the dispatcher's position in the request cycle.
type State int32

const (
	StateIdle State = iota
	StateAwaitingConnection
	StateConnected
	StateRouting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConnection:
		return "awaiting_connection"
	case StateConnected:
		return "connected"
	case StateRouting:
		return "routing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Trainer runs a training request.
type Trainer interface {
	Train(ctx context.Context, datasetRoot string, epochs, batchSize int) (*trainer.Result, error)
}

// Predictor runs a prediction request.
type Predictor interface {
	Predict(ctx context.Context, wavIndex int, artifactPath, target string) (bool, error)
}

// Service answers init, predict and train requests, one at a time.
type Service struct {
	ws        *workspace.Workspace
	transport transport.Config
	trainer   Trainer
	predictor Predictor
	target    string

	state  atomic.Int32
	logger logging.Logger
}

// New creates a service. target is the label a prediction is compared with.
func New(ws *workspace.Workspace, tcfg transport.Config, tr Trainer, pr Predictor, target string) *Service {
	return &Service{
		ws:        ws,
		transport: tcfg,
		trainer:   tr,
		predictor: pr,
		target:    target,
		logger: logging.WithFields(logging.Fields{
			"component": "dispatcher",
		}),
	}
}

// State returns the current loop state.
func (s *Service) State() State {
	return State(s.state.Load())
}

func (s *Service) setState(st State) {
	s.state.Store(int32(st))
}

// Serve runs until ctx is cancelled, returning nil in that case. Failing to
// create the endpoint is the only error that stops the loop.
func (s *Service) Serve(ctx context.Context) error {
	logger := s.logger.WithFields(logging.Fields{
		"function": "Serve",
		"endpoint": s.transport.Endpoint,
		"network":  s.transport.Network,
	})
	logger.Info("Service started", logging.Fields{
		"workspace": s.ws.Root,
	})

	for {
		s.setState(StateIdle)
		if ctx.Err() != nil {
			logger.Info("Service stopped")
			return nil
		}

		ln, err := transport.Listen(s.transport)
		if err != nil {
			return fmt.Errorf("failed to create endpoint: %w", err)
		}

		s.setState(StateAwaitingConnection)
		conn, err := ln.Accept(ctx)
		// no backlog: the endpoint exists only while waiting for one client
		if closeErr := ln.Close(); closeErr != nil {
			logger.Warn("Failed to close endpoint", logging.Fields{"error": closeErr.Error()})
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error(err, "Accept failed")
			continue
		}

		s.setState(StateConnected)
		s.serveConn(ctx, conn)
	}
}

func (s *Service) serveConn(ctx context.Context, conn *transport.Conn) {
	defer conn.Close()

	ctx = logging.ContextWithFields(ctx, logging.Fields{
		"request_id": uuid.NewString(),
	})
	logger := s.logger.WithContext(ctx)

	msg, err := conn.ReadMessage()
	if err != nil {
		logger.Error(err, "Failed to read request")
		if errors.Is(err, transport.ErrMessageTooLarge) {
			if werr := conn.WriteMessage([]byte(protocol.ErrorResponse(err))); werr != nil {
				logger.Error(werr, "Failed to write response")
			}
		}
		return
	}

	s.setState(StateRouting)
	resp := s.Handle(ctx, string(msg))

	if err := conn.WriteMessage([]byte(resp)); err != nil {
		logger.Error(err, "Failed to write response")
	}
}

// Handle routes one request message and returns the response message. It
// never panics; handler panics become error responses.
func (s *Service) Handle(ctx context.Context, msg string) (resp string) {
	logger := s.logger.WithContext(ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("internal error: %v", r)
			logger.Error(err, "Handler panicked")
			resp = protocol.ErrorResponse(err)
		}
	}()

	req, err := protocol.ParseRequest(msg)
	if err != nil {
		logger.Warn("Rejected request", logging.Fields{
			"error": err.Error(),
		})
		return protocol.ErrorResponse(err)
	}

	logger = logger.WithFields(logging.Fields{"command": string(req.Command)})
	logger.Debug("Routing request")

	payload, err := s.route(ctx, req)
	if err != nil {
		logger.Error(err, "Request failed", logging.Fields{
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return protocol.ErrorResponse(err)
	}

	logger.Info("Request served", logging.Fields{
		"payload":     payload,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return protocol.Response(payload)
}

func (s *Service) route(ctx context.Context, req *protocol.Request) (string, error) {
	switch req.Command {
	case protocol.CommandInit:
		return s.ws.Root, nil

	case protocol.CommandPredict:
		ok, err := s.predictor.Predict(ctx, req.Predict.WavIndex, req.Predict.ArtifactPath, s.target)
		if err != nil {
			return "", err
		}
		return protocol.FormatBool(ok), nil

	case protocol.CommandTrain:
		res, err := s.trainer.Train(ctx, req.Train.DatasetPath, req.Train.Epochs, req.Train.BatchSize)
		if err != nil {
			return "", err
		}
		return protocol.FormatTrainResult(res.Accuracy, res.Loss), nil
	}

	return "", fmt.Errorf("%w: %q", protocol.ErrUnknownCommand, string(req.Command))
}
