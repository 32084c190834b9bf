// Package protocol defines the text messages exchanged with clients.
//
// A request is "<tag>@<arg1>@<arg2>...". A response is "response:<payload>",
// or "response:error:<reason>" when the request could not be served.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Separator splits a request into tag and arguments.
	Separator = "@"
	// ResponsePrefix starts every response.
	ResponsePrefix = "response:"
	// ErrorPrefix follows ResponsePrefix in error responses.
	ErrorPrefix = "error:"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArgumentCount  = errors.New("wrong number of arguments")
	ErrBadArgument    = errors.New("bad argument")
	// ErrRemote wraps the reason carried by an error response.
	ErrRemote = errors.New("server error")
)

// Command is a request tag.
type Command string

const (
	CommandInit    Command = "init"
	CommandPredict Command = "predict"
	CommandTrain   Command = "train"
)

// Request is a parsed request. Exactly one of Predict and Train is set for
// those commands.
type Request struct {
	Command Command
	Predict *PredictArgs
	Train   *TrainArgs
}

// PredictArgs are the arguments of predict@<wavIndex>@<artifactPath>.
type PredictArgs struct {
	WavIndex     int
	ArtifactPath string
}

// TrainArgs are the arguments of train@<datasetPath>@<epochs>@<batchSize>.
type TrainArgs struct {
	DatasetPath string
	Epochs      int
	BatchSize   int
}

// ParseRequest parses one request message. Trailing CR/LF is ignored.
func ParseRequest(msg string) (*Request, error) {
	msg = strings.TrimRight(msg, "\r\n\x00")
	if msg == "" {
		return nil, fmt.Errorf("%w: empty request", ErrUnknownCommand)
	}

	parts := strings.Split(msg, Separator)
	tag, args := Command(parts[0]), parts[1:]

	switch tag {
	case CommandInit:
		// "init@" carries one empty argument
		for _, a := range args {
			if a != "" {
				return nil, fmt.Errorf("%w: init takes none, got %d", ErrArgumentCount, len(args))
			}
		}
		return &Request{Command: CommandInit}, nil

	case CommandPredict:
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: predict takes 2, got %d", ErrArgumentCount, len(args))
		}
		idx, err := parseInt("wav index", args[0])
		if err != nil {
			return nil, err
		}
		if args[1] == "" {
			return nil, fmt.Errorf("%w: empty artifact path", ErrBadArgument)
		}
		return &Request{
			Command: CommandPredict,
			Predict: &PredictArgs{WavIndex: idx, ArtifactPath: args[1]},
		}, nil

	case CommandTrain:
		if len(args) != 3 {
			return nil, fmt.Errorf("%w: train takes 3, got %d", ErrArgumentCount, len(args))
		}
		if args[0] == "" {
			return nil, fmt.Errorf("%w: empty dataset path", ErrBadArgument)
		}
		epochs, err := parseInt("epochs", args[1])
		if err != nil {
			return nil, err
		}
		batch, err := parseInt("batch size", args[2])
		if err != nil {
			return nil, err
		}
		return &Request{
			Command: CommandTrain,
			Train:   &TrainArgs{DatasetPath: args[0], Epochs: epochs, BatchSize: batch},
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, string(tag))
}

func parseInt(name, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrBadArgument, name, s)
	}
	return v, nil
}

// String formats the request as a message.
func (r *Request) String() string {
	switch r.Command {
	case CommandPredict:
		return Join(CommandPredict, strconv.Itoa(r.Predict.WavIndex), r.Predict.ArtifactPath)
	case CommandTrain:
		return Join(CommandTrain, r.Train.DatasetPath, strconv.Itoa(r.Train.Epochs), strconv.Itoa(r.Train.BatchSize))
	default:
		return Join(r.Command)
	}
}

// Join joins a tag and its arguments. A tag without arguments keeps a
// trailing separator, as in "init@".
func Join(tag Command, args ...string) string {
	if len(args) == 0 {
		return string(tag) + Separator
	}
	return string(tag) + Separator + strings.Join(args, Separator)
}

// Response formats a successful response.
func Response(payload string) string {
	return ResponsePrefix + payload
}

// ErrorResponse formats an error response. The reason is flattened to one line.
func ErrorResponse(err error) string {
	reason := "unknown error"
	if err != nil {
		reason = strings.Join(strings.Fields(err.Error()), " ")
	}
	return ResponsePrefix + ErrorPrefix + reason
}

// FormatBool renders a boolean payload.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// FormatTrainResult renders "<accuracy>:<loss>".
func FormatTrainResult(accuracy, loss float64) string {
	return strconv.FormatFloat(accuracy, 'g', -1, 64) + ":" + strconv.FormatFloat(loss, 'g', -1, 64)
}

// ParseResponse returns the payload of a response, or an error wrapping
// ErrRemote for error responses.
func ParseResponse(msg string) (string, error) {
	payload, ok := strings.CutPrefix(msg, ResponsePrefix)
	if !ok {
		return "", fmt.Errorf("malformed response %q", msg)
	}
	if reason, isErr := strings.CutPrefix(payload, ErrorPrefix); isErr {
		return "", fmt.Errorf("%w: %s", ErrRemote, reason)
	}
	return payload, nil
}

// ParseTrainResult parses a FormatTrainResult payload.
func ParseTrainResult(payload string) (accuracy, loss float64, err error) {
	accStr, lossStr, ok := strings.Cut(payload, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed train result %q", payload)
	}
	if accuracy, err = strconv.ParseFloat(accStr, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed accuracy %q: %w", accStr, err)
	}
	if loss, err = strconv.ParseFloat(lossStr, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed loss %q: %w", lossStr, err)
	}
	return accuracy, loss, nil
}
