// Package failure tags errors with the kind of failure and the pipeline stage
// that produced them. Callers log and count by kind; clients only ever see one
// uniform message.
package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindDecode   Kind = "decode"
	KindProvider Kind = "provider"
	KindConfig   Kind = "config"
	KindRequest  Kind = "request"
	KindInternal Kind = "internal"
)

type Stage string

const (
	StageUpload      Stage = "upload"
	StageDecode      Stage = "decode"
	StageExtraction  Stage = "extraction"
	StageTranslation Stage = "translation"
	StageStartup     Stage = "startup"
)

type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failure at %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s failure at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, stage Stage, err error) error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf reports the kind of the outermost tagged error in err's chain,
// or KindInternal when err carries no tag.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

func StageOf(err error) Stage {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Stage
	}
	return ""
}
