package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		msg     string
		want    *Request
		wantErr error
	}{
		{"init@", &Request{Command: CommandInit}, nil},
		{"init", &Request{Command: CommandInit}, nil},
		{"init@\n", &Request{Command: CommandInit}, nil},
		{"predict@3@/tmp/model.h5", &Request{Command: CommandPredict, Predict: &PredictArgs{3, "/tmp/model.h5"}}, nil},
		{"train@/data@10@8", &Request{Command: CommandTrain, Train: &TrainArgs{"/data", 10, 8}}, nil},
		{"foo@bar", nil, ErrUnknownCommand},
		{"", nil, ErrUnknownCommand},
		{"init@x", nil, ErrArgumentCount},
		{"predict@3", nil, ErrArgumentCount},
		{"train@/data@1", nil, ErrArgumentCount},
		{"predict@three@/m", nil, ErrBadArgument},
		{"train@/data@ten@8", nil, ErrBadArgument},
		{"predict@3@", nil, ErrBadArgument},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, err := ParseRequest(tt.msg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Command != tt.want.Command {
				t.Errorf("Command = %q, want %q", got.Command, tt.want.Command)
			}
			if tt.want.Predict != nil && *got.Predict != *tt.want.Predict {
				t.Errorf("Predict = %+v, want %+v", got.Predict, tt.want.Predict)
			}
			if tt.want.Train != nil && *got.Train != *tt.want.Train {
				t.Errorf("Train = %+v, want %+v", got.Train, tt.want.Train)
			}
		})
	}
}

func TestRequestString(t *testing.T) {
	for _, msg := range []string{"init@", "predict@3@/tmp/model.h5", "train@/data@10@8"} {
		r, err := ParseRequest(msg)
		if err != nil {
			t.Fatal(err)
		}
		if r.String() != msg {
			t.Errorf("String() = %q, want %q", r.String(), msg)
		}
	}
}

func TestResponses(t *testing.T) {
	if got := Response(FormatBool(true)); got != "response:True" {
		t.Errorf("got %q", got)
	}
	if got := Response(FormatBool(false)); got != "response:False" {
		t.Errorf("got %q", got)
	}
	if got := FormatTrainResult(0.875, 0.3); got != "0.875:0.3" {
		t.Errorf("got %q", got)
	}

	errMsg := ErrorResponse(fmt.Errorf("wrapped:\n%w", ErrUnknownCommand))
	if errMsg != "response:error:wrapped: unknown command" {
		t.Errorf("got %q", errMsg)
	}

	if _, err := ParseResponse(errMsg); !errors.Is(err, ErrRemote) {
		t.Errorf("ParseResponse(error) = %v", err)
	}
	payload, err := ParseResponse("response:0.5:0.25")
	if err != nil || payload != "0.5:0.25" {
		t.Errorf("ParseResponse = %q, %v", payload, err)
	}
	acc, loss, err := ParseTrainResult(payload)
	if err != nil || acc != 0.5 || loss != 0.25 {
		t.Errorf("ParseTrainResult = %v, %v, %v", acc, loss, err)
	}
	if _, err := ParseResponse("nope"); err == nil {
		t.Error("malformed response accepted")
	}
}
